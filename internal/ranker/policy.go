package ranker

import (
	"fmt"
	"strings"
)

// Strategy selects what the table does when distinct keys exceed the ceiling.
type Strategy int

const (
	// StrategyNone never evicts; the caller sizes the budget.
	StrategyNone Strategy = iota
	// StrategyLowestCount evicts the lowest-count, least recently updated keys.
	// Evicted keys that come back restart at 1, so counts are lower bounds.
	StrategyLowestCount
	// StrategySketch backs every key with a count-min sketch and keeps only
	// the heaviest keys by name. Counts are upper-bound estimates.
	StrategySketch
)

const (
	defaultSketchWidth = 1 << 15
	defaultSketchDepth = 4
	maxSketchDepth     = 8
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyLowestCount:
		return "lowest-count"
	case StrategySketch:
		return "sketch"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy accepts the names printed by String plus a few aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return StrategyNone, nil
	case "lowest-count", "lru", "lru-by-count":
		return StrategyLowestCount, nil
	case "sketch", "approximate", "count-min":
		return StrategySketch, nil
	default:
		return StrategyNone, fmt.Errorf("ranker: unknown capacity strategy %q (want none, lowest-count or sketch)", name)
	}
}

// Policy bounds the number of distinct keys a Table tracks.
type Policy struct {
	Strategy Strategy

	// MaxKeys is the distinct-key ceiling. Required unless Strategy is none.
	MaxKeys int

	// Protect is the number of top-ranked keys that are never evicted.
	// Zero means a tenth of MaxKeys. Set it to at least the largest K queried.
	Protect int

	// SketchWidth and SketchDepth size the count-min sketch (sketch strategy only).
	SketchWidth int
	SketchDepth int
}

// Approximate reports whether counts produced under this policy may be
// inexact (lossy). Only StrategyNone is exact.
func (p Policy) Approximate() bool {
	return p.Strategy != StrategyNone
}

// lowWater is the number of keys kept after an eviction sweep.
func (p Policy) lowWater() int {
	headroom := p.MaxKeys / 10
	if headroom < 1 {
		headroom = 1
	}
	return p.MaxKeys - headroom
}

func (p Policy) withDefaults() (Policy, error) {
	if p.Strategy == StrategyNone {
		return p, nil
	}
	if p.Strategy != StrategyLowestCount && p.Strategy != StrategySketch {
		return p, fmt.Errorf("ranker: invalid strategy %v", p.Strategy)
	}
	if p.MaxKeys < 2 {
		return p, fmt.Errorf("ranker: max keys must be at least 2 for strategy %s, got %d", p.Strategy, p.MaxKeys)
	}
	if p.Protect <= 0 {
		p.Protect = p.MaxKeys / 10
		if p.Protect < 1 {
			p.Protect = 1
		}
	}
	if p.Protect > p.lowWater() {
		return p, fmt.Errorf("ranker: protect (%d) must not exceed %d for max keys %d", p.Protect, p.lowWater(), p.MaxKeys)
	}
	if p.Strategy == StrategySketch {
		if p.SketchWidth <= 0 {
			p.SketchWidth = defaultSketchWidth
		}
		if p.SketchDepth <= 0 {
			p.SketchDepth = defaultSketchDepth
		}
		if p.SketchDepth > maxSketchDepth {
			p.SketchDepth = maxSketchDepth
		}
	}
	return p, nil
}
