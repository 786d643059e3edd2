package ranker

// Tally is a shard-local counter with no locking. A single goroutine owns it
// until it is handed to Table.Merge, after which it must not be reused.
type Tally struct {
	counts map[string]uint64
	order  []string
	total  uint64

	// Set for shard tallies only.
	sharded bool
	run     uint64
	shard   int
	next    uint64   // position of the next Add within the shard
	firsts  []uint64 // position of the first Add of order[i]
}

// NewTally creates an empty tally. New keys are stamped when merged.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]uint64)}
}

// NewShardTally creates the first tally of shard index within the run
// reserved by Table.ReserveRun. Keys are stamped with their position in the
// shard, so ties between shards rank by shard index whatever the merge order.
func NewShardTally(run uint64, shard int) *Tally {
	return &Tally{
		counts:  make(map[string]uint64),
		sharded: true,
		run:     run,
		shard:   shard,
	}
}

// Successor returns an empty tally continuing the same shard, for use after
// t has been handed to Merge.
func (t *Tally) Successor() *Tally {
	if !t.sharded {
		return NewTally()
	}
	next := NewShardTally(t.run, t.shard)
	next.next = t.next
	return next
}

// Add counts one occurrence of message.
func (t *Tally) Add(message string) {
	c, ok := t.counts[message]
	if !ok {
		t.order = append(t.order, message)
		if t.sharded {
			t.firsts = append(t.firsts, t.next)
		}
	}
	t.next++
	t.counts[message] = satAdd(c, 1)
	t.total = satAdd(t.total, 1)
}

// Count returns the tallied count of message.
func (t *Tally) Count(message string) uint64 { return t.counts[message] }

// Len returns the number of distinct messages.
func (t *Tally) Len() int { return len(t.order) }

// Total returns the number of occurrences tallied.
func (t *Tally) Total() uint64 { return t.total }
