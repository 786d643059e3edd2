package ranker

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/tinytelemetry/errtop/internal/model"
)

type entry struct {
	count uint64
	first stamp  // first occurrence, for tie-breaks
	last  uint64 // sequence number of the latest update, for eviction
}

// stamp orders first occurrences. Sequential writes use seq alone. Keys
// merged during a sharded run share the run's reserved seq and are ordered
// by shard index, then by position within the shard, so the order does not
// depend on when each shard's tally reached the table.
type stamp struct {
	seq   uint64
	shard int
	pos   uint64
}

func (s stamp) less(o stamp) bool {
	if s.seq != o.seq {
		return s.seq < o.seq
	}
	if s.shard != o.shard {
		return s.shard < o.shard
	}
	return s.pos < o.pos
}

// Table is the frequency table of distinct error messages.
//
// It has a single-writer discipline: Record and Merge serialize on a write
// lock, and TopK builds its snapshot under the read lock, so every snapshot is
// a consistent point-in-time view. Each Record is atomic.
type Table struct {
	mu        sync.RWMutex
	policy    Policy
	entries   map[string]*entry
	sketch    *sketch
	seq       uint64
	recorded  uint64
	evictions uint64

	lastEvictLog time.Time
}

// New creates an empty table governed by policy.
func New(policy Policy) (*Table, error) {
	p, err := policy.withDefaults()
	if err != nil {
		return nil, err
	}
	t := &Table{
		policy:  p,
		entries: make(map[string]*entry),
	}
	if p.Strategy == StrategySketch {
		t.sketch = newSketch(p.SketchWidth, p.SketchDepth)
	}
	return t, nil
}

// Record counts one occurrence of message, creating it with count 1 if unseen.
func (t *Table) Record(message string) {
	t.mu.Lock()
	t.addLocked(message, 1, nil)
	t.mu.Unlock()
}

// ReserveRun returns the sequence number that stamps every key first seen
// by the shard tallies of one sharded run. See NewShardTally.
func (t *Table) ReserveRun() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	return t.seq
}

// Merge folds a shard-local tally into the table in one critical section.
// New keys keep the first-seen order they had inside the tally. Keys of
// shard tallies are ordered by shard and position regardless of the order
// in which tallies are merged.
// The tally must not be used afterwards.
func (t *Table) Merge(tally *Tally) {
	if tally == nil || tally.Len() == 0 {
		return
	}
	t.mu.Lock()
	for i, key := range tally.order {
		var st *stamp
		if tally.sharded {
			st = &stamp{seq: tally.run, shard: tally.shard, pos: tally.firsts[i]}
		}
		t.addLocked(key, tally.counts[key], st)
	}
	t.mu.Unlock()
}

// addLocked adds n to message. st is the first-seen stamp of a shard tally,
// nil for sequential writes.
func (t *Table) addLocked(message string, n uint64, st *stamp) {
	t.seq++
	t.recorded = satAdd(t.recorded, n)

	e, ok := t.entries[message]
	switch {
	case !ok:
		e = &entry{first: stamp{seq: t.seq}}
		if st != nil {
			e.first = *st
		}
		t.entries[message] = e
	case st != nil && st.seq == e.first.seq && st.less(e.first):
		// Seen by a later shard first in merge order, earlier in shard order.
		e.first = *st
	}
	if t.sketch != nil {
		if est := t.sketch.Add(message, n); est > e.count {
			e.count = est
		}
	} else {
		e.count = satAdd(e.count, n)
	}
	e.last = t.seq

	if !ok && t.policy.Strategy != StrategyNone && len(t.entries) > t.policy.MaxKeys {
		t.evictLocked()
	}
}

// evictLocked shrinks the table to the policy's low-water mark, never
// touching the top Protect keys of the current ranking.
func (t *Table) evictLocked() {
	victims := len(t.entries) - t.policy.lowWater()
	if victims <= 0 {
		return
	}

	protected := make(map[string]struct{}, t.policy.Protect)
	for _, it := range selectFirst(t.entries, t.policy.Protect, rankBefore, nil) {
		protected[it.key] = struct{}{}
	}
	skip := func(key string) bool {
		_, ok := protected[key]
		return ok
	}

	evicted := selectFirst(t.entries, victims, evictBefore, skip)
	for _, it := range evicted {
		delete(t.entries, it.key)
	}
	t.evictions = satAdd(t.evictions, uint64(len(evicted)))

	if now := time.Now(); now.Sub(t.lastEvictLog) >= 10*time.Second {
		t.lastEvictLog = now
		log.Printf("ranker: capacity ceiling %d reached, evicted %d keys (strategy %s, %d evictions total)",
			t.policy.MaxKeys, len(evicted), t.policy.Strategy, t.evictions)
	}
}

// TopK returns up to k messages ordered by count descending, ties broken by
// earliest first-seen. It never mutates the table; calling it twice with no
// intervening writes returns identical snapshots.
func (t *Table) TopK(k int) model.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	top := selectFirst(t.entries, k, rankBefore, nil)
	out := make(model.Snapshot, len(top))
	for i, it := range top {
		out[i] = model.RankedMessage{Message: it.key, Count: it.e.count}
	}
	return out
}

// Count returns the current count of message, or zero if it is not tracked.
func (t *Table) Count(message string) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[message]; ok {
		return e.count
	}
	return 0
}

// Len returns the number of distinct messages currently tracked.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Stats describes the table.
func (t *Table) Stats() model.RankerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return model.RankerStats{
		Distinct:    len(t.entries),
		Recorded:    t.recorded,
		Evictions:   t.evictions,
		Strategy:    t.policy.Strategy.String(),
		MaxKeys:     t.policy.MaxKeys,
		Approximate: t.policy.Approximate(),
	}
}

// Policy returns the effective policy, defaults applied.
func (t *Table) Policy() Policy {
	return t.policy
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
