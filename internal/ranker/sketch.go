package ranker

import "github.com/zeebo/xxh3"

const sketchSeed = 0x9e3779b97f4a7c15

// sketch is a count-min sketch with conservative update.
// Estimates never undercount; they overcount by at most the colliding mass.
type sketch struct {
	mask  uint64
	depth int
	rows  [][]uint64
}

func newSketch(width, depth int) *sketch {
	w := uint64(1)
	for w < uint64(width) {
		w <<= 1
	}
	rows := make([][]uint64, depth)
	for i := range rows {
		rows[i] = make([]uint64, w)
	}
	return &sketch{mask: w - 1, depth: depth, rows: rows}
}

func (s *sketch) slots(key string, idx *[maxSketchDepth]uint64) {
	h1 := xxh3.HashString(key)
	h2 := xxh3.HashStringSeed(key, sketchSeed) | 1
	for i := 0; i < s.depth; i++ {
		idx[i] = (h1 + uint64(i)*h2) & s.mask
	}
}

// Add counts n occurrences of key and returns the new estimate.
func (s *sketch) Add(key string, n uint64) uint64 {
	var idx [maxSketchDepth]uint64
	s.slots(key, &idx)

	est := s.rows[0][idx[0]]
	for i := 1; i < s.depth; i++ {
		if v := s.rows[i][idx[i]]; v < est {
			est = v
		}
	}
	target := satAdd(est, n)
	for i := 0; i < s.depth; i++ {
		if s.rows[i][idx[i]] < target {
			s.rows[i][idx[i]] = target
		}
	}
	return target
}

// Estimate returns the current estimate for key without changing it.
func (s *sketch) Estimate(key string) uint64 {
	var idx [maxSketchDepth]uint64
	s.slots(key, &idx)

	est := s.rows[0][idx[0]]
	for i := 1; i < s.depth; i++ {
		if v := s.rows[i][idx[i]]; v < est {
			est = v
		}
	}
	return est
}
