package gamelink

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"openfront.gg/internal/protocol"
)

var intentKinds = []string{
	protocol.IntentAttack,
	protocol.IntentBuildUnit,
	protocol.IntentAllianceReq,
	protocol.IntentAllianceReply,
	protocol.IntentBreakAlliance,
	protocol.IntentDonate,
	protocol.IntentEmbargo,
	protocol.IntentSetAttackRatio,
}

// IntentValidator checks intent payloads against the JSON Schemas in
// the schemas file before anything is forwarded to the game. The schema
// document is the shared contract with the game side.
type IntentValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewIntentValidator compiles one schema per intent kind from the
// $defs of the given schema document.
func NewIntentValidator(schemaPath string) (*IntentValidator, error) {
	v := &IntentValidator{schemas: make(map[string]*jsonschema.Schema, len(intentKinds))}
	for _, kind := range intentKinds {
		s, err := jsonschema.Compile(schemaPath + "#/$defs/" + kind)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %q: %w", kind, err)
		}
		v.schemas[kind] = s
	}
	return v, nil
}

func (v *IntentValidator) Validate(kind string, payload json.RawMessage) error {
	s, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("unknown intent kind %q", kind)
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("payload for %q: %w", kind, err)
	}
	return nil
}
