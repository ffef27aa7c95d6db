// Package query is the read-only surface the MCP layer pulls from.
// Every accessor reports ok=false instead of failing while the relevant
// upstream message has not arrived yet.
package query

import (
	"sort"

	"openfront.gg/internal/actions"
	"openfront.gg/internal/rules"
	"openfront.gg/internal/state"
)

type Facade struct {
	rec   *state.Reconciler
	rules rules.Rules
}

func New(rec *state.Reconciler, r rules.Rules) *Facade {
	return &Facade{rec: rec, rules: r}
}

// Outward documents use the field names the agent side already speaks
// (camelCase), independent of the game-link wire format.

type SessionDoc struct {
	GameID     string `json:"gameID"`
	ClientID   string `json:"clientID"`
	Username   string `json:"username,omitempty"`
	MapName    string `json:"mapName,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

type PlayerDoc struct {
	ID           uint16 `json:"id"`
	Name         string `json:"name"`
	IsAlive      bool   `json:"isAlive"`
	Disconnected bool   `json:"disconnected,omitempty"`
	Troops       uint64 `json:"troops"`
	Gold         uint64 `json:"gold"`
	Land         int    `json:"land"`
	Traitor      bool   `json:"traitor,omitempty"`
	Team         string `json:"team,omitempty"`
}

type UnitDoc struct {
	ID           uint32 `json:"id"`
	UnitType     string `json:"unitType"`
	Owner        uint16 `json:"owner"`
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Troops       uint64 `json:"troops,omitempty"`
	Health       int    `json:"health,omitempty"`
	Level        int    `json:"level,omitempty"`
	Constructing bool   `json:"constructing,omitempty"`
	Retreating   bool   `json:"retreating,omitempty"`
}

type AttackDoc struct {
	ID         string `json:"id"`
	Target     uint16 `json:"target"`
	Troops     uint64 `json:"troops"`
	Retreating bool   `json:"retreating,omitempty"`
}

type AllianceDoc struct {
	Other            uint16 `json:"other"`
	ExpiresTick      uint64 `json:"expiresTick"`
	ExtensionPending bool   `json:"extensionPending,omitempty"`
}

type LocalDoc struct {
	ID      uint16 `json:"id"`
	Name    string `json:"name,omitempty"`
	Gold    uint64 `json:"gold"`
	Troops  uint64 `json:"troops"`
	IsAlive bool   `json:"isAlive"`
	Spawned bool   `json:"spawned"`

	Allies    []uint16 `json:"allies"`
	Embargoes []uint16 `json:"embargoes"`
	Targets   []uint16 `json:"targets"`

	Attacks          []AttackDoc   `json:"attacks"`
	AllianceRequests []uint16      `json:"allianceRequests"`
	Alliances        []AllianceDoc `json:"alliances"`
}

type EventDoc struct {
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	PlayerID uint16 `json:"playerID,omitempty"`
}

type StateDoc struct {
	Tick     uint64      `json:"tick"`
	PlayerID uint16      `json:"playerID"`
	Local    LocalDoc    `json:"localPlayer"`
	Players  []PlayerDoc `json:"players"`
	Units    []UnitDoc   `json:"units"`
	Events   []EventDoc  `json:"recentEvents"`
}

type OwnerDoc struct {
	ID     uint16    `json:"id"`
	Name   string    `json:"name,omitempty"`
	Tiles  int       `json:"tiles"`
	Bounds state.Box `json:"bounds"`
}

type MapSummaryDoc struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	LandTiles int        `json:"landTiles"`
	Owners    []OwnerDoc `json:"owners"`
}

type TileDoc struct {
	X            int    `json:"x"`
	Y            int    `json:"y"`
	Ref          uint32 `json:"ref"`
	Land         bool   `json:"land"`
	Shoreline    bool   `json:"shoreline"`
	DefenseBonus bool   `json:"defenseBonus"`
	Fallout      bool   `json:"fallout"`
	Magnitude    int    `json:"magnitude"`
	Owner        uint16 `json:"owner"`
	OwnerName    string `json:"ownerName,omitempty"`
	Border       bool   `json:"border"`
}

func (f *Facade) Session() (SessionDoc, bool) {
	var doc SessionDoc
	var ok bool
	f.rec.Inspect(func(v state.View) {
		if !v.HaveSession {
			return
		}
		doc = SessionDoc{
			GameID:     v.Session.GameID,
			ClientID:   v.Session.ClientID,
			Username:   v.Session.Username,
			MapName:    v.Session.MapName,
			Difficulty: v.Session.Difficulty,
			Mode:       v.Session.Mode,
		}
		ok = true
	})
	return doc, ok
}

func (f *Facade) State() (StateDoc, bool) {
	var doc StateDoc
	var ok bool
	f.rec.Inspect(func(v state.View) {
		if !v.HaveSnap {
			return
		}
		doc = buildStateDoc(v)
		ok = true
	})
	return doc, ok
}

func (f *Facade) MapSummary() (MapSummaryDoc, bool) {
	summary, ok := f.rec.SummarizeTerritoryLocked()
	if !ok {
		return MapSummaryDoc{}, false
	}

	doc := MapSummaryDoc{
		Width:     summary.Width,
		Height:    summary.Height,
		LandTiles: summary.LandTiles,
		Owners:    make([]OwnerDoc, 0, len(summary.Owners)),
	}
	for id, s := range summary.Owners {
		doc.Owners = append(doc.Owners, OwnerDoc{
			ID: id, Name: summary.Names[id], Tiles: s.Tiles, Bounds: s.Bounds,
		})
	}
	sort.Slice(doc.Owners, func(i, j int) bool {
		if doc.Owners[i].Tiles != doc.Owners[j].Tiles {
			return doc.Owners[i].Tiles > doc.Owners[j].Tiles
		}
		return doc.Owners[i].ID < doc.Owners[j].ID
	})
	return doc, true
}

func (f *Facade) TileAt(x, y int) (TileDoc, bool) {
	var doc TileDoc
	var ok bool
	f.rec.Inspect(func(v state.View) {
		if v.Terrain == nil {
			return
		}
		ref, in := v.Terrain.Ref(x, y)
		if !in {
			return
		}
		doc = TileDoc{
			X:            x,
			Y:            y,
			Ref:          ref,
			Land:         v.Terrain.IsLand(ref),
			Shoreline:    v.Terrain.IsShoreline(ref),
			DefenseBonus: v.Terrain.HasDefenseBonus(ref),
			Fallout:      v.Terrain.HasFallout(ref),
			Magnitude:    v.Terrain.Magnitude(ref),
			Owner:        v.Terrain.OwnerOf(ref),
			Border:       v.Terrain.IsBorder(ref),
		}
		if p, known := v.Snap.Players[doc.Owner]; known {
			doc.OwnerName = p.Name
		}
		ok = true
	})
	return doc, ok
}

// ActionsAt derives the action set for a coordinate. The derivation runs
// under the same read lock the reconciler writes under, so it sees one
// consistent snapshot.
func (f *Facade) ActionsAt(x, y int) (actions.Result, bool) {
	var res actions.Result
	var ok bool
	cost := f.rules.CostOf
	f.rec.Inspect(func(v state.View) {
		if v.Terrain == nil || !v.HaveSnap {
			return
		}
		ref, in := v.Terrain.Ref(x, y)
		if !in {
			return
		}
		res = actions.DeriveAt(v.Snap, v.Terrain, f.rules, cost, ref)
		ok = true
	})
	return res, ok
}

func buildStateDoc(v state.View) StateDoc {
	snap := v.Snap
	doc := StateDoc{
		Tick:     snap.Tick,
		PlayerID: snap.Local.SmallID,
		Local: LocalDoc{
			ID:               snap.Local.SmallID,
			Name:             snap.Local.Name,
			Gold:             snap.Local.Gold,
			Troops:           snap.Local.Troops,
			IsAlive:          snap.Local.Alive,
			Spawned:          snap.Local.Spawned,
			Allies:           sortedIDs(snap.Local.Allies),
			Embargoes:        sortedIDs(snap.Local.Embargoes),
			Targets:          sortedIDs(snap.Local.Targets),
			AllianceRequests: append([]uint16{}, snap.Local.AllianceRequests...),
		},
	}
	for _, a := range snap.Local.Attacks {
		doc.Local.Attacks = append(doc.Local.Attacks, AttackDoc{
			ID: a.ID, Target: a.Target, Troops: a.Troops, Retreating: a.Retreating,
		})
	}
	for _, a := range snap.Local.Alliances {
		doc.Local.Alliances = append(doc.Local.Alliances, AllianceDoc{
			Other: a.Other, ExpiresTick: a.ExpiresTick, ExtensionPending: a.ExtensionPending,
		})
	}

	doc.Players = make([]PlayerDoc, 0, len(snap.Players))
	for _, p := range snap.Players {
		doc.Players = append(doc.Players, PlayerDoc{
			ID:           p.SmallID,
			Name:         p.Name,
			IsAlive:      p.Alive,
			Disconnected: p.Disconnected,
			Troops:       p.Troops,
			Gold:         p.Gold,
			Land:         p.Tiles,
			Traitor:      p.Traitor,
			Team:         p.Team,
		})
	}
	sort.Slice(doc.Players, func(i, j int) bool { return doc.Players[i].ID < doc.Players[j].ID })

	doc.Units = make([]UnitDoc, 0, len(snap.Units))
	for _, u := range snap.Units {
		ud := UnitDoc{
			ID:           u.ID,
			UnitType:     u.UnitType,
			Owner:        u.Owner,
			Troops:       u.Troops,
			Health:       u.Health,
			Level:        u.Level,
			Constructing: u.Constructing,
			Retreating:   u.Retreating,
		}
		if v.Terrain != nil && v.Terrain.Contains(u.Tile) {
			ud.X = v.Terrain.X(u.Tile)
			ud.Y = v.Terrain.Y(u.Tile)
		}
		doc.Units = append(doc.Units, ud)
	}
	sort.Slice(doc.Units, func(i, j int) bool { return doc.Units[i].ID < doc.Units[j].ID })

	doc.Events = make([]EventDoc, 0, len(snap.RecentEvents))
	for _, ev := range snap.RecentEvents {
		doc.Events = append(doc.Events, EventDoc{
			Tick: ev.Tick, Kind: ev.Kind, Message: ev.Message, PlayerID: ev.PlayerID,
		})
	}
	return doc
}

func sortedIDs(set map[uint16]struct{}) []uint16 {
	out := make([]uint16, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
