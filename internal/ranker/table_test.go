package ranker

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/tinytelemetry/errtop/internal/model"
)

func newTable(t *testing.T, p Policy) *Table {
	t.Helper()
	tb, err := New(p)
	if err != nil {
		t.Fatalf("New(%+v): %v", p, err)
	}
	return tb
}

func TestTable_TopKOrdersByCountThenFirstSeen(t *testing.T) {
	t.Parallel()
	tb := newTable(t, Policy{})

	for _, msg := range []string{"b", "a", "c", "a", "b", "d"} {
		tb.Record(msg)
	}

	got := tb.TopK(10)
	want := model.Snapshot{
		{Message: "b", Count: 2},
		{Message: "a", Count: 2},
		{Message: "c", Count: 1},
		{Message: "d", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TopK(10) = %+v, want %+v", got, want)
	}

	if got := tb.TopK(2); !reflect.DeepEqual(got, want[:2]) {
		t.Fatalf("TopK(2) = %+v, want %+v", got, want[:2])
	}
}

func TestTable_TopKBounds(t *testing.T) {
	t.Parallel()
	tb := newTable(t, Policy{})

	if got := tb.TopK(3); len(got) != 0 || got == nil {
		t.Fatalf("TopK on empty table = %#v, want empty non-nil snapshot", got)
	}

	tb.Record("x")
	for _, k := range []int{0, -1} {
		if got := tb.TopK(k); len(got) != 0 {
			t.Errorf("TopK(%d) len = %d, want 0", k, len(got))
		}
	}
}

func TestTable_TopKIsIdempotent(t *testing.T) {
	t.Parallel()
	tb := newTable(t, Policy{})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		tb.Record(fmt.Sprintf("msg-%d", rng.Intn(300)))
	}

	first := tb.TopK(25)
	second := tb.TopK(25)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated TopK on unchanged table returned different snapshots")
	}
	if tb.Stats().Recorded != 5000 {
		t.Fatalf("recorded = %d, want 5000", tb.Stats().Recorded)
	}
}

func TestTable_TopKMatchesFullSort(t *testing.T) {
	t.Parallel()
	tb := newTable(t, Policy{})

	rng := rand.New(rand.NewSource(42))
	counts := map[string]uint64{}
	var order []string
	for i := 0; i < 20000; i++ {
		msg := fmt.Sprintf("err-%d", int(rng.ExpFloat64()*40))
		if _, ok := counts[msg]; !ok {
			order = append(order, msg)
		}
		counts[msg]++
		tb.Record(msg)
	}

	firstSeen := map[string]int{}
	for i, m := range order {
		firstSeen[m] = i
	}
	sorted := append([]string(nil), order...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := counts[sorted[i]], counts[sorted[j]]
		if ci != cj {
			return ci > cj
		}
		return firstSeen[sorted[i]] < firstSeen[sorted[j]]
	})

	k := 10
	got := tb.TopK(k)
	if len(got) != k {
		t.Fatalf("TopK(%d) len = %d", k, len(got))
	}
	for i := 0; i < k; i++ {
		if got[i].Message != sorted[i] || got[i].Count != counts[sorted[i]] {
			t.Fatalf("rank %d = %+v, want %s (%d)", i, got[i], sorted[i], counts[sorted[i]])
		}
	}
}

func TestTable_DeterministicAcrossInstances(t *testing.T) {
	t.Parallel()
	a := newTable(t, Policy{})
	b := newTable(t, Policy{})

	for i := 0; i < 1000; i++ {
		msg := fmt.Sprintf("m%d", (i*7)%13)
		a.Record(msg)
		b.Record(msg)
	}
	if !reflect.DeepEqual(a.TopK(13), b.TopK(13)) {
		t.Fatal("identical input produced different rankings")
	}
}

func TestTable_CountsSaturate(t *testing.T) {
	t.Parallel()
	tb := newTable(t, Policy{})

	tb.Record("x")
	tb.entries["x"].count = math.MaxUint64 - 1
	tb.Record("x")
	tb.Record("x")
	tb.Record("x")

	if got := tb.Count("x"); got != math.MaxUint64 {
		t.Fatalf("count = %d, want saturated %d", got, uint64(math.MaxUint64))
	}
}

func TestTable_MergePreservesTallyOrder(t *testing.T) {
	t.Parallel()
	tb := newTable(t, Policy{})
	tb.Record("existing")

	tally := NewTally()
	for _, msg := range []string{"z", "y", "z", "existing", "x"} {
		tally.Add(msg)
	}
	if tally.Len() != 4 || tally.Total() != 5 {
		t.Fatalf("tally len/total = %d/%d, want 4/5", tally.Len(), tally.Total())
	}
	tb.Merge(tally)
	tb.Merge(nil)
	tb.Merge(NewTally())

	want := model.Snapshot{
		{Message: "existing", Count: 2},
		{Message: "z", Count: 2},
		{Message: "y", Count: 1},
		{Message: "x", Count: 1},
	}
	if got := tb.TopK(4); !reflect.DeepEqual(got, want) {
		t.Fatalf("TopK after merge = %+v, want %+v", got, want)
	}
	if got := tb.Stats().Recorded; got != 6 {
		t.Fatalf("recorded = %d, want 6", got)
	}
}

func TestTable_ShardTiesIgnoreMergeOrder(t *testing.T) {
	t.Parallel()

	build := func(order []int) model.Snapshot {
		tb := newTable(t, Policy{})
		tb.Record("before the run")
		run := tb.ReserveRun()

		tallies := []*Tally{NewShardTally(run, 0), NewShardTally(run, 1)}
		for _, msg := range []string{"noise", "noise", "noise", "shared", "alpha"} {
			tallies[0].Add(msg)
		}
		for _, msg := range []string{"shared", "beta"} {
			tallies[1].Add(msg)
		}
		// A second batch of shard 0 continues its positions.
		next := tallies[0].Successor()
		tb.Merge(tallies[order[0]])
		tb.Merge(tallies[order[1]])
		next.Add("gamma")
		tb.Merge(next)
		tb.Record("after the run")
		return tb.TopK(10)
	}

	want := model.Snapshot{
		{Message: "noise", Count: 3},
		{Message: "shared", Count: 2},
		{Message: "before the run", Count: 1},
		{Message: "alpha", Count: 1},
		{Message: "gamma", Count: 1},
		{Message: "beta", Count: 1},
		{Message: "after the run", Count: 1},
	}
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		if got := build(order); !reflect.DeepEqual(got, want) {
			t.Fatalf("merge order %v: TopK = %+v, want %+v", order, got, want)
		}
	}
}

func TestTable_ConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	t.Parallel()
	tb := newTable(t, Policy{})

	const writes = 20000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < writes; i++ {
			tb.Record(fmt.Sprintf("m%d", i%50))
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := tb.TopK(5)
				for i := 1; i < len(snap); i++ {
					if snap[i].Count > snap[i-1].Count {
						t.Errorf("snapshot not sorted: %+v", snap)
						return
					}
				}
				for _, rm := range snap {
					if tb.Count(rm.Message) < rm.Count {
						t.Errorf("snapshot count %d for %q exceeds table count", rm.Count, rm.Message)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if got := tb.Stats().Recorded; got != writes {
		t.Fatalf("recorded = %d, want %d", got, writes)
	}
}
