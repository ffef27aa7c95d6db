// Package terrain holds the static map buffer plus the two mutable
// per-tile fields (owner, fallout) that the game streams as packed
// update words.
package terrain

import (
	"fmt"
)

// Static terrain byte, one per tile:
//
//	bit 7     land (0 = water)
//	bit 6     shoreline
//	bit 5     defense bonus
//	bits 0-4  magnitude (0..31)
const (
	bitLand      = 1 << 7
	bitShoreline = 1 << 6
	bitDefense   = 1 << 5
	magnitudeMax = 0x1F
)

// Packed tile-update word:
//
//	bits 0-31   tile ref
//	bits 32-47  owner small id (0 = unowned)
//	bit  48     fallout
//	bits 49-63  reserved, must be zero
const (
	wordOwnerShift   = 32
	wordFalloutBit   = uint64(1) << 48
	wordReservedMask = ^(uint64(1)<<49 - 1)
)

const Unowned = uint16(0)

// maxTiles guards against a hostile or corrupt terrain_init allocating
// unbounded memory. 8192x8192 is far beyond any shipped map.
const maxTiles = 8192 * 8192

type Store struct {
	width     int
	height    int
	landTiles int

	cells   []byte
	owner   []uint16
	fallout []bool
}

// New builds a Store from an already decoded terrain buffer.
// The buffer must hold exactly width*height bytes.
func New(width, height int, cells []byte, landTiles int) (*Store, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bad dimensions %dx%d", width, height)
	}
	n := width * height
	if n > maxTiles {
		return nil, fmt.Errorf("map too large: %d tiles", n)
	}
	if len(cells) != n {
		return nil, fmt.Errorf("terrain buffer is %d bytes, want %d", len(cells), n)
	}
	return &Store{
		width:     width,
		height:    height,
		landTiles: landTiles,
		cells:     cells,
		owner:     make([]uint16, n),
		fallout:   make([]bool, n),
	}, nil
}

func (s *Store) Width() int { return s.width }
func (s *Store) Height() int { return s.height }
func (s *Store) NumTiles() int { return len(s.cells) }
func (s *Store) LandTiles() int { return s.landTiles }

// Ref encodes a coordinate as the canonical tile reference y*width+x.
func (s *Store) Ref(x, y int) (uint32, bool) {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return 0, false
	}
	return uint32(y*s.width + x), true
}

func (s *Store) X(ref uint32) int { return int(ref) % s.width }
func (s *Store) Y(ref uint32) int { return int(ref) / s.width }

func (s *Store) Contains(ref uint32) bool { return int(ref) < len(s.cells) }

func (s *Store) IsLand(ref uint32) bool { return s.cells[ref]&bitLand != 0 }
func (s *Store) IsWater(ref uint32) bool { return s.cells[ref]&bitLand == 0 }
func (s *Store) IsShoreline(ref uint32) bool { return s.cells[ref]&bitShoreline != 0 }

func (s *Store) HasDefenseBonus(ref uint32) bool { return s.cells[ref]&bitDefense != 0 }
func (s *Store) Magnitude(ref uint32) int { return int(s.cells[ref] & magnitudeMax) }

func (s *Store) OwnerOf(ref uint32) uint16 { return s.owner[ref] }
func (s *Store) HasFallout(ref uint32) bool { return s.fallout[ref] }
func (s *Store) IsOwned(ref uint32) bool { return s.owner[ref] != Unowned }

// IsBorder reports whether the tile is owned and touches a tile with a
// different owner (including unowned).
func (s *Store) IsBorder(ref uint32) bool {
	own := s.owner[ref]
	if own == Unowned {
		return false
	}
	for _, n := range s.NeighborsOf(ref) {
		if s.owner[n] != own {
			return true
		}
	}
	return false
}

// NeighborsOf returns the 4-neighborhood of a tile, clipped to the map.
func (s *Store) NeighborsOf(ref uint32) []uint32 {
	x := int(ref) % s.width
	y := int(ref) / s.width
	out := make([]uint32, 0, 4)
	if x > 0 {
		out = append(out, ref-1)
	}
	if x < s.width-1 {
		out = append(out, ref+1)
	}
	if y > 0 {
		out = append(out, ref-uint32(s.width))
	}
	if y < s.height-1 {
		out = append(out, ref+uint32(s.width))
	}
	return out
}

func (s *Store) ForEachTile(fn func(ref uint32)) {
	for i := range s.cells {
		fn(uint32(i))
	}
}

// ApplyPackedUpdate applies one packed tile-update word. Applying the
// same word any number of times leaves the store in the same state as
// applying it once. A malformed word is rejected without touching state.
func (s *Store) ApplyPackedUpdate(word uint64) error {
	if word&wordReservedMask != 0 {
		return fmt.Errorf("reserved bits set in word %#x", word)
	}
	ref := uint32(word)
	if !s.Contains(ref) {
		return fmt.Errorf("tile ref %d out of range (map has %d tiles)", ref, len(s.cells))
	}
	s.owner[ref] = uint16(word >> wordOwnerShift)
	s.fallout[ref] = word&wordFalloutBit != 0
	return nil
}

// PackUpdate builds the wire word for a tile mutation. The game side
// and tests use it; the bridge itself only consumes words.
func PackUpdate(ref uint32, owner uint16, fallout bool) uint64 {
	w := uint64(ref) | uint64(owner)<<wordOwnerShift
	if fallout {
		w |= wordFalloutBit
	}
	return w
}

// Cell assembles a static terrain byte. Used by map tooling and tests.
func Cell(land, shoreline, defense bool, magnitude int) byte {
	var b byte
	if land {
		b |= bitLand
	}
	if shoreline {
		b |= bitShoreline
	}
	if defense {
		b |= bitDefense
	}
	if magnitude < 0 {
		magnitude = 0
	}
	if magnitude > magnitudeMax {
		magnitude = magnitudeMax
	}
	return b | byte(magnitude)
}
