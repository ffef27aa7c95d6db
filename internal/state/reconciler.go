package state

import (
	"fmt"
	"log"
	"sync"

	"openfront.gg/internal/protocol"
	"openfront.gg/internal/terrain"
)

const defaultEventCap = 100

type Config struct {
	// EventCap bounds Snapshot.RecentEvents. Zero means the default.
	EventCap int
	Logger   *log.Logger
}

// Reconciler folds the ordered inbound stream into the snapshot and the
// terrain store. Apply calls come from one producer; any number of
// readers may call the View/Summarize side. Each Apply and each read
// runs under the one lock, so readers never see a half-applied update.
type Reconciler struct {
	log      *log.Logger
	eventCap int

	mu sync.RWMutex

	session     protocol.SessionInfoMsg
	haveSession bool

	terrain *terrain.Store

	snap     Snapshot
	haveSnap bool

	// Diagnostics, visible in status reporting.
	malformedWords  uint64
	protoViolations uint64
}

func NewReconciler(cfg Config) *Reconciler {
	if cfg.EventCap <= 0 {
		cfg.EventCap = defaultEventCap
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Reconciler{
		log:      cfg.Logger,
		eventCap: cfg.EventCap,
		snap:     newSnapshot(),
	}
}

// Apply dispatches one inbound message. A returned error means the
// message (or part of it) was dropped; prior state is always retained
// and remains consistent.
func (r *Reconciler) Apply(msg protocol.Inbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch m := msg.(type) {
	case protocol.SessionInfoMsg:
		r.applySession(m)
		return nil
	case protocol.TerrainInitMsg:
		return r.applyTerrainInit(m)
	case protocol.TickUpdateMsg:
		return r.applyTick(m)
	default:
		// Inbound is a closed set; reaching this is a programming error.
		return fmt.Errorf("%s: unhandled message %T", protocol.ErrProtoViolation, msg)
	}
}

func (r *Reconciler) applySession(m protocol.SessionInfoMsg) {
	r.session = m
	r.haveSession = true
	r.snap.Local.ClientID = m.ClientID
	if r.snap.Local.Name == "" {
		r.snap.Local.Name = m.Username
	}
}

func (r *Reconciler) applyTerrainInit(m protocol.TerrainInitMsg) error {
	if r.terrain != nil {
		r.protoViolations++
		r.log.Printf("%s: repeat terrain_init (%dx%d) dropped, keeping existing %dx%d map",
			protocol.ErrProtoViolation, m.Width, m.Height, r.terrain.Width(), r.terrain.Height())
		return fmt.Errorf("%s: terrain already initialized", protocol.ErrProtoViolation)
	}
	st, err := terrain.FromInit(m.Width, m.Height, m.Terrain, m.LandTiles)
	if err != nil {
		r.log.Printf("%s: terrain_init rejected: %v", protocol.ErrMalformedData, err)
		return fmt.Errorf("%s: %w", protocol.ErrMalformedData, err)
	}
	r.terrain = st
	return nil
}

func (r *Reconciler) applyTick(m protocol.TickUpdateMsg) error {
	if !r.haveSnap {
		r.haveSnap = true
	}
	if m.Tick < r.snap.Tick {
		r.protoViolations++
		r.log.Printf("%s: tick regression %d -> %d, update dropped",
			protocol.ErrProtoViolation, r.snap.Tick, m.Tick)
		return fmt.Errorf("%s: tick %d below current %d", protocol.ErrProtoViolation, m.Tick, r.snap.Tick)
	}

	r.applyTileUpdates(m.PackedTileUpdates)

	if m.Players != nil {
		r.replacePlayers(m.Players)
	}
	if m.Units != nil {
		r.replaceUnits(m.Units)
	}
	if m.Local != nil {
		r.applyLocal(*m.Local)
	}
	for _, ev := range m.Events {
		r.pushEvent(ev)
	}

	r.snap.Tick = m.Tick
	return nil
}

// applyTileUpdates applies each word independently: a word that fails
// to parse is skipped and counted, the rest of the batch still lands.
func (r *Reconciler) applyTileUpdates(words []uint64) {
	if len(words) == 0 {
		return
	}
	if r.terrain == nil {
		r.protoViolations++
		r.log.Printf("%s: %d tile updates before terrain_init, dropped",
			protocol.ErrProtoViolation, len(words))
		return
	}
	for _, w := range words {
		if err := r.terrain.ApplyPackedUpdate(w); err != nil {
			r.malformedWords++
			r.log.Printf("%s: tile update skipped: %v", protocol.ErrMalformedData, err)
		}
	}
}

func (r *Reconciler) replacePlayers(list []protocol.PlayerUpdate) {
	players := make(map[uint16]Player, len(list))
	for _, p := range list {
		players[p.SmallID] = Player{
			SmallID:      p.SmallID,
			ClientID:     p.ClientID,
			Name:         p.Name,
			DisplayName:  p.DisplayName,
			Alive:        p.Alive,
			Disconnected: p.Disconnected,
			Tiles:        p.Tiles,
			Gold:         p.Gold,
			Troops:       p.Troops,
			Traitor:      p.Traitor,
			Team:         p.Team,
		}
	}
	r.snap.Players = players

	// Re-derive the local identity by joining the session client id
	// against the fresh list. A transient miss keeps the previous
	// identity; it is never cleared to a zero value here.
	if !r.haveSession {
		return
	}
	for _, p := range list {
		if p.ClientID != "" && p.ClientID == r.session.ClientID {
			r.snap.Local.SmallID = p.SmallID
			r.snap.Local.Name = p.Name
			return
		}
	}
}

func (r *Reconciler) replaceUnits(list []protocol.UnitUpdate) {
	units := make(map[uint32]Unit, len(list))
	for _, u := range list {
		if !u.Active {
			continue
		}
		units[u.ID] = Unit{
			ID:           u.ID,
			UnitType:     u.UnitType,
			Owner:        u.Owner,
			Tile:         u.Tile,
			Troops:       u.Troops,
			Health:       u.Health,
			Level:        u.Level,
			Constructing: u.Constructing,
			Retreating:   u.Retreating,
			TargetTile:   u.TargetTile,
		}
	}
	r.snap.Units = units
}

func (r *Reconciler) applyLocal(m protocol.LocalUpdate) {
	lp := &r.snap.Local
	lp.Gold = m.Gold
	lp.Troops = m.Troops
	lp.Alive = m.Alive
	lp.Spawned = m.Spawned
	lp.Allies = idSet(m.Allies)
	lp.Embargoes = idSet(m.Embargoes)
	lp.Targets = idSet(m.Targets)
	lp.Attacks = append(lp.Attacks[:0], m.Attacks...)
	lp.AllianceRequests = append(lp.AllianceRequests[:0], m.AllianceRequests...)
	lp.Alliances = append(lp.Alliances[:0], m.Alliances...)
}

func (r *Reconciler) pushEvent(ev protocol.GameEvent) {
	r.snap.RecentEvents = append(r.snap.RecentEvents, ev)
	if n := len(r.snap.RecentEvents); n > r.eventCap {
		r.snap.RecentEvents = append(r.snap.RecentEvents[:0], r.snap.RecentEvents[n-r.eventCap:]...)
	}
}

// View is what readers get while the read lock is held. The pointers
// are only valid inside the Inspect callback.
type View struct {
	Snap    *Snapshot
	Terrain *terrain.Store // nil before terrain_init
	Session *protocol.SessionInfoMsg

	HaveSnap    bool
	HaveSession bool
}

// Inspect runs fn under the read lock. All query and derivation paths
// go through here so no read can interleave inside an Apply.
func (r *Reconciler) Inspect(fn func(v View)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(View{
		Snap:        &r.snap,
		Terrain:     r.terrain,
		Session:     &r.session,
		HaveSnap:    r.haveSnap,
		HaveSession: r.haveSession,
	})
}

type Diagnostics struct {
	MalformedWords  uint64 `json:"malformed_words"`
	ProtoViolations uint64 `json:"proto_violations"`
}

func (r *Reconciler) Diagnostics() Diagnostics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Diagnostics{
		MalformedWords:  r.malformedWords,
		ProtoViolations: r.protoViolations,
	}
}
