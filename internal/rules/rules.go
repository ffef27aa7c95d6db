// Package rules holds the structure catalog and the gold cost curves.
// The numbers mirror the game's configuration; the bridge never
// enforces them, it only predicts what the game will accept.
package rules

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// CostUnavailable is returned for unknown unit types. No gold balance
// reaches it, so the type derives as unaffordable rather than failing.
const CostUnavailable = uint64(math.MaxUint64)

// Terrain compatibility classes for buildable types.
const (
	TerrainLand  = "land"
	TerrainWater = "water"
)

type Structure struct {
	// Type tag as it appears in unit updates and build intents.
	Type string `yaml:"type"`
	// Terrain is "land" or "water". Water types need a shoreline or
	// water tile; land types need a non-water tile.
	Terrain string `yaml:"terrain"`
	// Mobile types (e.g. warships) do not occupy a tile for building
	// purposes and are not counted as structures.
	Mobile bool `yaml:"mobile,omitempty"`
	// Costs is the marginal gold cost curve keyed by how many of this
	// type the player already owns. The last entry repeats beyond the
	// end of the table. Must be non-decreasing.
	Costs []uint64 `yaml:"costs"`
}

type Rules struct {
	Structures []Structure `yaml:"structures"`

	index map[string]int
}

// CostFunc is the injected cost lookup used by action derivation.
type CostFunc func(unitType string, existingCount int) uint64

func Load(path string) (Rules, error) {
	var r Rules
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return r, fmt.Errorf("rules.yaml: %w", err)
	}
	if err := r.build(); err != nil {
		return r, fmt.Errorf("rules.yaml: %w", err)
	}
	return r, nil
}

// New builds a validated rule set from an explicit catalog.
func New(structures []Structure) (Rules, error) {
	r := Rules{Structures: structures}
	if err := r.build(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Default returns the built-in catalog, used when no rules file is given.
func Default() Rules {
	r := Rules{Structures: []Structure{
		{Type: "city", Terrain: TerrainLand, Costs: []uint64{125_000, 250_000, 500_000, 1_000_000}},
		{Type: "defense_post", Terrain: TerrainLand, Costs: []uint64{50_000, 100_000, 200_000}},
		{Type: "missile_silo", Terrain: TerrainLand, Costs: []uint64{1_000_000}},
		{Type: "sam_launcher", Terrain: TerrainLand, Costs: []uint64{1_500_000, 3_000_000}},
		{Type: "port", Terrain: TerrainWater, Costs: []uint64{125_000, 250_000, 500_000}},
		{Type: "warship", Terrain: TerrainWater, Mobile: true, Costs: []uint64{250_000, 250_000}},
	}}
	if err := r.build(); err != nil {
		panic(err)
	}
	return r
}

func (r *Rules) build() error {
	r.index = make(map[string]int, len(r.Structures))
	for i, s := range r.Structures {
		if s.Type == "" {
			return fmt.Errorf("structure %d: missing type", i)
		}
		if _, dup := r.index[s.Type]; dup {
			return fmt.Errorf("structure %q: duplicate type", s.Type)
		}
		if s.Terrain != TerrainLand && s.Terrain != TerrainWater {
			return fmt.Errorf("structure %q: terrain must be %q or %q", s.Type, TerrainLand, TerrainWater)
		}
		if len(s.Costs) == 0 {
			return fmt.Errorf("structure %q: empty cost curve", s.Type)
		}
		for j := 1; j < len(s.Costs); j++ {
			if s.Costs[j] < s.Costs[j-1] {
				return fmt.Errorf("structure %q: cost curve decreases at index %d", s.Type, j)
			}
		}
		r.index[s.Type] = i
	}
	return nil
}

func (r *Rules) ByType(unitType string) (Structure, bool) {
	i, ok := r.index[unitType]
	if !ok {
		return Structure{}, false
	}
	return r.Structures[i], true
}

// CostOf looks up the marginal cost for the next unit of a type given
// the current owned count. Unknown types get CostUnavailable.
func (r *Rules) CostOf(unitType string, existingCount int) uint64 {
	s, ok := r.ByType(unitType)
	if !ok {
		return CostUnavailable
	}
	if existingCount < 0 {
		existingCount = 0
	}
	if existingCount >= len(s.Costs) {
		existingCount = len(s.Costs) - 1
	}
	return s.Costs[existingCount]
}
