package protocol

import "encoding/json"

// SESSION_INFO (game -> bridge): identifies the lobby and the local client.
// Sent once on connect, before any tick data is authoritative.
type SessionInfoMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id"`
	ClientID        string `json:"client_id"`
	Username        string `json:"username,omitempty"`
	MapName         string `json:"map_name,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
	Mode            string `json:"mode,omitempty"`
}

// TERRAIN_INIT (game -> bridge): full static terrain buffer, sent exactly
// once per match. Terrain is one byte per tile, base64(zstd(bytes)).
type TerrainInitMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Terrain         string `json:"terrain"`
	LandTiles       int    `json:"land_tiles"`
}

// TICK_UPDATE (game -> bridge): per-tick delta. Every list is optional;
// when present, players and units are complete replacements, not merges.
type TickUpdateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	PackedTileUpdates []uint64 `json:"packed_tile_updates,omitempty"`

	Players []PlayerUpdate `json:"players,omitempty"`
	Units   []UnitUpdate   `json:"units,omitempty"`
	Events  []GameEvent    `json:"events,omitempty"`

	Local *LocalUpdate `json:"local,omitempty"`
}

type PlayerUpdate struct {
	SmallID      uint16 `json:"id"`
	ClientID     string `json:"client_id,omitempty"`
	Name         string `json:"name"`
	DisplayName  string `json:"display_name,omitempty"`
	Alive        bool   `json:"alive"`
	Disconnected bool   `json:"disconnected,omitempty"`
	Tiles        int    `json:"tiles"`
	Gold         uint64 `json:"gold"`
	Troops       uint64 `json:"troops"`
	Traitor      bool   `json:"traitor,omitempty"`
	Team         string `json:"team,omitempty"`
}

type UnitUpdate struct {
	ID           uint32 `json:"id"`
	UnitType     string `json:"unit_type"`
	Owner        uint16 `json:"owner"`
	Tile         uint32 `json:"tile"`
	Troops       uint64 `json:"troops,omitempty"`
	Active       bool   `json:"active"`
	Health       int    `json:"health,omitempty"`
	Level        int    `json:"level,omitempty"`
	Constructing bool   `json:"constructing,omitempty"`
	Retreating   bool   `json:"retreating,omitempty"`
	TargetTile   uint32 `json:"target_tile,omitempty"`
}

type GameEvent struct {
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	PlayerID uint16 `json:"player_id,omitempty"`
}

// LocalUpdate carries the local player's private view: resources,
// relationship sets and outstanding diplomacy, which the public player
// list does not include.
type LocalUpdate struct {
	Gold    uint64 `json:"gold"`
	Troops  uint64 `json:"troops"`
	Alive   bool   `json:"alive"`
	Spawned bool   `json:"spawned"`

	Allies    []uint16 `json:"allies,omitempty"`
	Embargoes []uint16 `json:"embargoes,omitempty"`
	Targets   []uint16 `json:"targets,omitempty"`

	Attacks          []AttackUpdate   `json:"attacks,omitempty"`
	AllianceRequests []uint16         `json:"alliance_requests,omitempty"`
	Alliances        []AllianceUpdate `json:"alliances,omitempty"`
}

type AttackUpdate struct {
	ID         string `json:"id"`
	Target     uint16 `json:"target"`
	Troops     uint64 `json:"troops"`
	Retreating bool   `json:"retreating,omitempty"`
}

type AllianceUpdate struct {
	Other            uint16 `json:"other"`
	ExpiresTick      uint64 `json:"expires_tick"`
	ExtensionPending bool   `json:"extension_pending,omitempty"`
}

// INTENT (bridge -> game): a player action submitted on behalf of the
// local client. Kind selects the schema the payload is validated against
// before the envelope is forwarded.
type IntentMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Kind            string          `json:"kind"`
	Payload         json.RawMessage `json:"payload"`
}

// Intent kinds accepted on the send side.
const (
	IntentAttack         = "attack"
	IntentBuildUnit      = "build_unit"
	IntentAllianceReq    = "alliance_request"
	IntentAllianceReply  = "alliance_reply"
	IntentBreakAlliance  = "break_alliance"
	IntentDonate         = "donate"
	IntentEmbargo        = "embargo"
	IntentSetAttackRatio = "set_attack_ratio"
)

func IsIntentKind(kind string) bool {
	switch kind {
	case IntentAttack, IntentBuildUnit, IntentAllianceReq, IntentAllianceReply,
		IntentBreakAlliance, IntentDonate, IntentEmbargo, IntentSetAttackRatio:
		return true
	default:
		return false
	}
}
