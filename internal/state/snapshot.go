// Package state folds the game's update stream into one queryable
// world snapshot and answers derived territory queries over it.
package state

import (
	"openfront.gg/internal/protocol"
)

// Snapshot is the reconciled view of the match. It is owned by the
// Reconciler; readers only see it under the reconciler's read lock.
type Snapshot struct {
	Tick uint64

	Local LocalPlayer

	// Players and Units follow the full-replace contract: every
	// tick_update that carries a list is treated as authoritative and
	// complete, so an entity omitted from a carried list is gone from
	// the snapshot. Updates that carry no list leave the previous map
	// untouched.
	Players map[uint16]Player
	Units   map[uint32]Unit

	// RecentEvents is insertion-ordered and capped; oldest entries are
	// evicted first.
	RecentEvents []protocol.GameEvent
}

type Player struct {
	SmallID      uint16
	ClientID     string
	Name         string
	DisplayName  string
	Alive        bool
	Disconnected bool
	Tiles        int
	Gold         uint64
	Troops       uint64
	Traitor      bool
	Team         string
}

type Unit struct {
	ID           uint32
	UnitType     string
	Owner        uint16
	Tile         uint32
	Troops       uint64
	Health       int
	Level        int
	Constructing bool
	Retreating   bool
	TargetTile   uint32
}

type LocalPlayer struct {
	// Identity, joined from session client id against the player list.
	SmallID  uint16
	ClientID string
	Name     string

	Gold    uint64
	Troops  uint64
	Alive   bool
	Spawned bool

	Allies    map[uint16]struct{}
	Embargoes map[uint16]struct{}
	Targets   map[uint16]struct{}

	Attacks          []protocol.AttackUpdate
	AllianceRequests []uint16
	Alliances        []protocol.AllianceUpdate
}

func newSnapshot() Snapshot {
	return Snapshot{
		Players: map[uint16]Player{},
		Units:   map[uint32]Unit{},
		Local: LocalPlayer{
			Allies:    map[uint16]struct{}{},
			Embargoes: map[uint16]struct{}{},
			Targets:   map[uint16]struct{}{},
		},
	}
}

// IsAlly reports alliance membership with the given player.
func (lp *LocalPlayer) IsAlly(id uint16) bool {
	_, ok := lp.Allies[id]
	return ok
}

func (lp *LocalPlayer) HasEmbargo(id uint16) bool {
	_, ok := lp.Embargoes[id]
	return ok
}

func idSet(ids []uint16) map[uint16]struct{} {
	out := make(map[uint16]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
