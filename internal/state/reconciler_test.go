package state

import (
	"io"
	"log"
	"testing"

	"openfront.gg/internal/protocol"
	"openfront.gg/internal/terrain"
)

func testReconciler(t *testing.T) *Reconciler {
	t.Helper()
	return NewReconciler(Config{
		Logger: log.New(io.Discard, "", 0),
	})
}

func terrainInitMsg(t *testing.T, w, h int) protocol.TerrainInitMsg {
	t.Helper()
	cells := make([]byte, w*h)
	for i := range cells {
		cells[i] = terrain.Cell(true, false, false, 1)
	}
	enc, err := terrain.EncodeBuffer(cells)
	if err != nil {
		t.Fatalf("EncodeBuffer: %v", err)
	}
	return protocol.TerrainInitMsg{
		Type:      protocol.TypeTerrainInit,
		Width:     w,
		Height:    h,
		Terrain:   enc,
		LandTiles: w * h,
	}
}

func sessionMsg(clientID string) protocol.SessionInfoMsg {
	return protocol.SessionInfoMsg{
		Type:     protocol.TypeSessionInfo,
		GameID:   "g1",
		ClientID: clientID,
		Username: "me",
	}
}

func snapshotOf(t *testing.T, r *Reconciler) Snapshot {
	t.Helper()
	var snap Snapshot
	r.Inspect(func(v View) { snap = *v.Snap })
	return snap
}

func TestReconciler_TickRegressionRejected(t *testing.T) {
	r := testReconciler(t)
	if err := r.Apply(protocol.TickUpdateMsg{Type: protocol.TypeTickUpdate, Tick: 5}); err != nil {
		t.Fatalf("tick 5: %v", err)
	}

	err := r.Apply(protocol.TickUpdateMsg{
		Type: protocol.TypeTickUpdate,
		Tick: 4,
		Players: []protocol.PlayerUpdate{
			{SmallID: 9, Name: "stale", Alive: true},
		},
	})
	if err == nil {
		t.Fatalf("tick regression accepted")
	}

	snap := snapshotOf(t, r)
	if snap.Tick != 5 {
		t.Fatalf("tick = %d, want 5", snap.Tick)
	}
	if len(snap.Players) != 0 {
		t.Fatalf("stale update's players were applied")
	}
	if d := r.Diagnostics(); d.ProtoViolations != 1 {
		t.Fatalf("ProtoViolations = %d, want 1", d.ProtoViolations)
	}
}

func TestReconciler_EqualTickAllowed(t *testing.T) {
	r := testReconciler(t)
	for _, tick := range []uint64{3, 3, 7} {
		if err := r.Apply(protocol.TickUpdateMsg{Type: protocol.TypeTickUpdate, Tick: tick}); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	if snap := snapshotOf(t, r); snap.Tick != 7 {
		t.Fatalf("tick = %d, want 7", snap.Tick)
	}
}

func TestReconciler_RepeatTerrainInitRejected(t *testing.T) {
	r := testReconciler(t)
	if err := r.Apply(terrainInitMsg(t, 4, 3)); err != nil {
		t.Fatalf("first terrain_init: %v", err)
	}
	if err := r.Apply(terrainInitMsg(t, 9, 9)); err == nil {
		t.Fatalf("second terrain_init accepted")
	}
	r.Inspect(func(v View) {
		if v.Terrain == nil || v.Terrain.Width() != 4 || v.Terrain.Height() != 3 {
			t.Fatalf("original terrain store not retained")
		}
	})
}

func TestReconciler_LocalPlayerJoinAndRetention(t *testing.T) {
	r := testReconciler(t)
	if err := r.Apply(sessionMsg("c-42")); err != nil {
		t.Fatalf("session: %v", err)
	}

	err := r.Apply(protocol.TickUpdateMsg{
		Type: protocol.TypeTickUpdate,
		Tick: 1,
		Players: []protocol.PlayerUpdate{
			{SmallID: 2, ClientID: "c-other", Name: "them", Alive: true},
			{SmallID: 7, ClientID: "c-42", Name: "me", Alive: true},
		},
	})
	if err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if snap := snapshotOf(t, r); snap.Local.SmallID != 7 || snap.Local.Name != "me" {
		t.Fatalf("local = %d/%q, want 7/me", snap.Local.SmallID, snap.Local.Name)
	}

	// A list with no matching client id must not clear the identity.
	err = r.Apply(protocol.TickUpdateMsg{
		Type: protocol.TypeTickUpdate,
		Tick: 2,
		Players: []protocol.PlayerUpdate{
			{SmallID: 2, ClientID: "c-other", Name: "them", Alive: true},
		},
	})
	if err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if snap := snapshotOf(t, r); snap.Local.SmallID != 7 {
		t.Fatalf("local identity cleared on transient miss: %d", snap.Local.SmallID)
	}
}

func TestReconciler_PlayersFullReplace(t *testing.T) {
	r := testReconciler(t)
	apply := func(tick uint64, players []protocol.PlayerUpdate) {
		t.Helper()
		if err := r.Apply(protocol.TickUpdateMsg{Type: protocol.TypeTickUpdate, Tick: tick, Players: players}); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	apply(1, []protocol.PlayerUpdate{
		{SmallID: 1, Name: "a", Alive: true},
		{SmallID: 2, Name: "b", Alive: true},
	})
	apply(2, []protocol.PlayerUpdate{
		{SmallID: 2, Name: "b", Alive: true},
	})
	snap := snapshotOf(t, r)
	if _, ok := snap.Players[1]; ok {
		t.Fatalf("player 1 should be gone after a list that omits it")
	}
	if _, ok := snap.Players[2]; !ok {
		t.Fatalf("player 2 missing")
	}

	// An update with no player list leaves the map untouched.
	apply(3, nil)
	if snap := snapshotOf(t, r); len(snap.Players) != 1 {
		t.Fatalf("players = %d after list-free tick, want 1", len(snap.Players))
	}
}

func TestReconciler_InactiveUnitsDropped(t *testing.T) {
	r := testReconciler(t)
	err := r.Apply(protocol.TickUpdateMsg{
		Type: protocol.TypeTickUpdate,
		Tick: 1,
		Units: []protocol.UnitUpdate{
			{ID: 10, UnitType: "city", Owner: 1, Tile: 0, Active: true},
			{ID: 11, UnitType: "warship", Owner: 1, Tile: 3, Active: false},
		},
	})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	snap := snapshotOf(t, r)
	if _, ok := snap.Units[10]; !ok {
		t.Fatalf("active unit missing")
	}
	if _, ok := snap.Units[11]; ok {
		t.Fatalf("inactive unit retained")
	}
}

func TestReconciler_EventCapEvictsOldest(t *testing.T) {
	r := NewReconciler(Config{EventCap: 3, Logger: log.New(io.Discard, "", 0)})
	var events []protocol.GameEvent
	for i := 0; i < 5; i++ {
		events = append(events, protocol.GameEvent{Tick: uint64(i), Kind: "attack", Message: string(rune('a' + i))})
	}
	if err := r.Apply(protocol.TickUpdateMsg{Type: protocol.TypeTickUpdate, Tick: 1, Events: events}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	snap := snapshotOf(t, r)
	if len(snap.RecentEvents) != 3 {
		t.Fatalf("events = %d, want 3", len(snap.RecentEvents))
	}
	for i, ev := range snap.RecentEvents {
		if ev.Tick != uint64(i+2) {
			t.Fatalf("event %d has tick %d, want %d (oldest must go first)", i, ev.Tick, i+2)
		}
	}
}

func TestReconciler_PartialWordFailure(t *testing.T) {
	r := testReconciler(t)
	if err := r.Apply(terrainInitMsg(t, 4, 4)); err != nil {
		t.Fatalf("terrain_init: %v", err)
	}

	words := []uint64{
		terrain.PackUpdate(1, 5, false),
		uint64(1) << 62, // reserved bits: malformed
		terrain.PackUpdate(2, 5, true),
	}
	if err := r.Apply(protocol.TickUpdateMsg{Type: protocol.TypeTickUpdate, Tick: 1, PackedTileUpdates: words}); err != nil {
		t.Fatalf("tick: %v", err)
	}

	r.Inspect(func(v View) {
		if v.Terrain.OwnerOf(1) != 5 {
			t.Fatalf("word before the malformed one not applied")
		}
		if v.Terrain.OwnerOf(2) != 5 || !v.Terrain.HasFallout(2) {
			t.Fatalf("word after the malformed one not applied")
		}
	})
	if d := r.Diagnostics(); d.MalformedWords != 1 {
		t.Fatalf("MalformedWords = %d, want 1", d.MalformedWords)
	}
}

func TestReconciler_TileUpdatesBeforeTerrain(t *testing.T) {
	r := testReconciler(t)
	err := r.Apply(protocol.TickUpdateMsg{
		Type:              protocol.TypeTickUpdate,
		Tick:              1,
		PackedTileUpdates: []uint64{terrain.PackUpdate(0, 1, false)},
	})
	if err != nil {
		t.Fatalf("tick before terrain should not fail the whole update: %v", err)
	}
	if d := r.Diagnostics(); d.ProtoViolations != 1 {
		t.Fatalf("ProtoViolations = %d, want 1", d.ProtoViolations)
	}
	if snap := snapshotOf(t, r); snap.Tick != 1 {
		t.Fatalf("tick = %d, want 1", snap.Tick)
	}
}

func TestReconciler_LocalUpdateSets(t *testing.T) {
	r := testReconciler(t)
	err := r.Apply(protocol.TickUpdateMsg{
		Type: protocol.TypeTickUpdate,
		Tick: 1,
		Local: &protocol.LocalUpdate{
			Gold:    500,
			Troops:  1000,
			Alive:   true,
			Spawned: true,
			Allies:  []uint16{2, 3, 3}, // duplicate collapses
			Attacks: []protocol.AttackUpdate{{ID: "a1", Target: 4, Troops: 50}},
			Alliances: []protocol.AllianceUpdate{
				{Other: 2, ExpiresTick: 900, ExtensionPending: true},
			},
		},
	})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	snap := snapshotOf(t, r)
	if snap.Local.Gold != 500 || snap.Local.Troops != 1000 {
		t.Fatalf("resources = %d/%d", snap.Local.Gold, snap.Local.Troops)
	}
	if len(snap.Local.Allies) != 2 {
		t.Fatalf("allies = %d, want 2 (set semantics)", len(snap.Local.Allies))
	}
	if !snap.Local.IsAlly(2) || !snap.Local.IsAlly(3) {
		t.Fatalf("ally membership wrong")
	}
	if len(snap.Local.Attacks) != 1 || snap.Local.Attacks[0].ID != "a1" {
		t.Fatalf("attacks = %+v", snap.Local.Attacks)
	}
	if len(snap.Local.Alliances) != 1 || !snap.Local.Alliances[0].ExtensionPending {
		t.Fatalf("alliances = %+v", snap.Local.Alliances)
	}
}
