package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	doc := `
structures:
  - type: city
    terrain: land
    costs: [100, 250, 500]
  - type: port
    terrain: water
    costs: [200]
  - type: warship
    terrain: water
    mobile: true
    costs: [300, 300]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.Structures) != 3 {
		t.Fatalf("structures = %d, want 3", len(r.Structures))
	}
	s, ok := r.ByType("warship")
	if !ok || !s.Mobile || s.Terrain != TerrainWater {
		t.Fatalf("warship = %+v", s)
	}
	if got := r.CostOf("city", 1); got != 250 {
		t.Fatalf("CostOf(city,1) = %d, want 250", got)
	}
}

func TestLoad_RejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"decreasing curve": `
structures:
  - type: city
    terrain: land
    costs: [250, 100]
`,
		"bad terrain": `
structures:
  - type: city
    terrain: swamp
    costs: [100]
`,
		"empty curve": `
structures:
  - type: city
    terrain: land
    costs: []
`,
		"duplicate type": `
structures:
  - type: city
    terrain: land
    costs: [100]
  - type: city
    terrain: land
    costs: [100]
`,
	}
	dir := t.TempDir()
	for name, doc := range cases {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: accepted", name)
		}
	}
}

func TestCostOf_ClampsAndSentinels(t *testing.T) {
	r, err := New([]Structure{
		{Type: "city", Terrain: TerrainLand, Costs: []uint64{100, 250}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := r.CostOf("city", 0); got != 100 {
		t.Fatalf("CostOf(city,0) = %d", got)
	}
	// Beyond the table the last entry repeats.
	if got := r.CostOf("city", 9); got != 250 {
		t.Fatalf("CostOf(city,9) = %d, want 250", got)
	}
	if got := r.CostOf("city", -1); got != 100 {
		t.Fatalf("CostOf(city,-1) = %d, want 100", got)
	}
	// Unknown types derive as unaffordable, not as an error.
	if got := r.CostOf("zeppelin", 0); got != CostUnavailable {
		t.Fatalf("CostOf(zeppelin,0) = %d, want sentinel", got)
	}
}

func TestDefault(t *testing.T) {
	r := Default()
	if len(r.Structures) == 0 {
		t.Fatalf("default catalog empty")
	}
	for _, s := range r.Structures {
		if r.CostOf(s.Type, 0) == CostUnavailable {
			t.Fatalf("%s: default catalog not indexed", s.Type)
		}
	}
}
