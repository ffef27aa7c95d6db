// Package actions computes the legal action set for a tile under the
// current snapshot. Everything here is a pure read; results are advisory
// for the agent, the game remains the authority on what is accepted.
package actions

import (
	"openfront.gg/internal/rules"
	"openfront.gg/internal/state"
	"openfront.gg/internal/terrain"
)

type BuildOption struct {
	UnitType string `json:"unitType"`
	Cost     uint64 `json:"cost"`
	CanBuild bool   `json:"canBuild"`
}

type Interaction struct {
	SharedBorder           bool `json:"sharedBorder"`
	IsAlly                 bool `json:"isAlly"`
	IsEmbargoed            bool `json:"isEmbargoed"`
	CanSendAllianceRequest bool `json:"canSendAllianceRequest"`
	CanBreakAlliance       bool `json:"canBreakAlliance"`
	CanDonate              bool `json:"canDonate"`
	CanEmbargo             bool `json:"canEmbargo"`
}

type Result struct {
	Owner   uint16 `json:"owner"`
	OwnTile bool   `json:"ownTile"`

	CanAttack bool `json:"canAttack"`

	// Buildable is populated only for own tiles without a structure.
	// Upgrading an existing structure is not derived; the game offers
	// no stable contract for it yet.
	Buildable []BuildOption `json:"buildable,omitempty"`

	Interaction *Interaction `json:"interaction,omitempty"`
}

// DeriveAt resolves the action set for one tile. An unowned tile, or a
// ref outside the map, yields the all-false default result.
func DeriveAt(snap *state.Snapshot, t *terrain.Store, cat rules.Rules, cost rules.CostFunc, ref uint32) Result {
	if t == nil || !t.Contains(ref) {
		return Result{}
	}
	owner := t.OwnerOf(ref)
	if owner == terrain.Unowned {
		return Result{}
	}

	local := &snap.Local
	if local.SmallID != terrain.Unowned && owner == local.SmallID {
		return deriveOwnTile(snap, t, cat, cost, ref)
	}
	return deriveForeignTile(snap, t, owner, ref)
}

func deriveOwnTile(snap *state.Snapshot, t *terrain.Store, cat rules.Rules, cost rules.CostFunc, ref uint32) Result {
	res := Result{Owner: snap.Local.SmallID, OwnTile: true}

	if structureAt(snap, cat, ref) {
		return res
	}

	counts := ownedCounts(snap)
	res.Buildable = make([]BuildOption, 0, len(cat.Structures))
	for _, s := range cat.Structures {
		c := cost(s.Type, counts[s.Type])
		opt := BuildOption{UnitType: s.Type, Cost: c}
		if terrainCompatible(t, s, ref) && c != rules.CostUnavailable && snap.Local.Gold >= c {
			opt.CanBuild = true
		}
		res.Buildable = append(res.Buildable, opt)
	}
	return res
}

func deriveForeignTile(snap *state.Snapshot, t *terrain.Store, owner uint16, ref uint32) Result {
	res := Result{Owner: owner}
	local := &snap.Local

	shared := false
	if local.SmallID != terrain.Unowned {
		for _, n := range t.NeighborsOf(ref) {
			if t.OwnerOf(n) == local.SmallID {
				shared = true
				break
			}
		}
	}
	res.CanAttack = shared

	ally := local.IsAlly(owner)
	embargoed := local.HasEmbargo(owner)
	res.Interaction = &Interaction{
		SharedBorder:           shared,
		IsAlly:                 ally,
		IsEmbargoed:            embargoed,
		CanSendAllianceRequest: !ally && !requestPending(local, owner),
		CanBreakAlliance:       ally,
		CanDonate:              ally,
		CanEmbargo:             !embargoed,
	}
	return res
}

// structureAt reports whether a non-mobile unit of the local player sits
// on the tile. Types missing from the catalog count as structures.
func structureAt(snap *state.Snapshot, cat rules.Rules, ref uint32) bool {
	for _, u := range snap.Units {
		if u.Tile != ref || u.Owner != snap.Local.SmallID {
			continue
		}
		if s, ok := cat.ByType(u.UnitType); ok && s.Mobile {
			continue
		}
		return true
	}
	return false
}

func ownedCounts(snap *state.Snapshot) map[string]int {
	counts := map[string]int{}
	for _, u := range snap.Units {
		if u.Owner == snap.Local.SmallID {
			counts[u.UnitType]++
		}
	}
	return counts
}

func terrainCompatible(t *terrain.Store, s rules.Structure, ref uint32) bool {
	if s.Terrain == rules.TerrainWater {
		return t.IsWater(ref) || t.IsShoreline(ref)
	}
	return !t.IsWater(ref)
}

func requestPending(lp *state.LocalPlayer, id uint16) bool {
	for _, r := range lp.AllianceRequests {
		if r == id {
			return true
		}
	}
	return false
}
