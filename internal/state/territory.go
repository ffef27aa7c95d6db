package state

import (
	"openfront.gg/internal/protocol"
	"openfront.gg/internal/terrain"
)

type Box struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

type OwnerSummary struct {
	Tiles  int `json:"tiles"`
	Bounds Box `json:"bounds"`
}

// SummarizeTerritory recomputes per-owner tile counts and bounding
// boxes with a full scan. Nothing is maintained incrementally; the
// scan runs strictly between update applications (see Reconciler.Inspect),
// so a count can never exceed the true tile total. Owners holding zero
// tiles do not appear in the result.
func SummarizeTerritory(t *terrain.Store) map[uint16]OwnerSummary {
	out := map[uint16]OwnerSummary{}
	t.ForEachTile(func(ref uint32) {
		own := t.OwnerOf(ref)
		if own == terrain.Unowned {
			return
		}
		x, y := t.X(ref), t.Y(ref)
		s, ok := out[own]
		if !ok {
			s = OwnerSummary{Bounds: Box{MinX: x, MinY: y, MaxX: x, MaxY: y}}
		}
		s.Tiles++
		if x < s.Bounds.MinX {
			s.Bounds.MinX = x
		}
		if y < s.Bounds.MinY {
			s.Bounds.MinY = y
		}
		if x > s.Bounds.MaxX {
			s.Bounds.MaxX = x
		}
		if y > s.Bounds.MaxY {
			s.Bounds.MaxY = y
		}
		out[own] = s
	})
	return out
}

// TerritorySummary is one consistent reading of the map: dimensions,
// per-owner aggregates and the owner names known at scan time.
type TerritorySummary struct {
	Width     int
	Height    int
	LandTiles int
	Owners    map[uint16]OwnerSummary
	Names     map[uint16]string
}

// SummarizeTerritoryLocked runs one scan under the read lock and checks
// the aggregate against the map area. A total above the area means the
// reconciliation itself is broken; it is reported, not corrected.
func (r *Reconciler) SummarizeTerritoryLocked() (TerritorySummary, bool) {
	var out TerritorySummary
	var ok bool
	r.Inspect(func(v View) {
		if v.Terrain == nil {
			return
		}
		out = TerritorySummary{
			Width:     v.Terrain.Width(),
			Height:    v.Terrain.Height(),
			LandTiles: v.Terrain.LandTiles(),
			Owners:    SummarizeTerritory(v.Terrain),
			Names:     map[uint16]string{},
		}
		total := 0
		for id, s := range out.Owners {
			total += s.Tiles
			if p, known := v.Snap.Players[id]; known {
				out.Names[id] = p.Name
			}
		}
		if total > v.Terrain.NumTiles() {
			r.log.Printf("%s: territory scan counted %d owned tiles on a %d-tile map",
				protocol.ErrInvariant, total, v.Terrain.NumTiles())
		}
		ok = true
	})
	return out, ok
}
