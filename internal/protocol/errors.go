package protocol

const (
	// Lifecycle-order violations: message dropped, prior state retained.
	ErrProtoViolation = "E_PROTO_VIOLATION"

	// A single record or packed word failed to parse; the rest of the
	// batch still applies.
	ErrMalformedData = "E_MALFORMED_DATA"

	// Query arrived before the relevant upstream message.
	ErrNotReady = "E_NOT_READY"

	// A derived aggregate contradicts the raw data it was derived from.
	ErrInvariant = "E_INVARIANT"

	// Intent/send side.
	ErrBadIntent    = "E_BAD_INTENT"
	ErrNotConnected = "E_NOT_CONNECTED"
)

var knownCodes = map[string]struct{}{
	ErrProtoViolation: {},
	ErrMalformedData:  {},
	ErrNotReady:       {},
	ErrInvariant:      {},
	ErrBadIntent:      {},
	ErrNotConnected:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
