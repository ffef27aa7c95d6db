package protocol

import "encoding/json"

const Version = "1.2"

// Message types on the game link.
const (
	TypeSessionInfo = "session_info"
	TypeTerrainInit = "terrain_init"
	TypeTickUpdate  = "tick_update"
	TypeIntent      = "intent"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Inbound is the closed set of messages the game pushes to the bridge.
// Dispatch over it is an exhaustive type switch in the reconciler.
type Inbound interface {
	inbound()
}

func (SessionInfoMsg) inbound() {}
func (TerrainInitMsg) inbound() {}
func (TickUpdateMsg) inbound()  {}
