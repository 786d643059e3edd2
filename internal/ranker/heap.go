package ranker

import (
	"container/heap"
	"slices"
)

type ranked struct {
	key string
	e   *entry
}

// rankBefore is the ranking order: higher count first, then earliest first-seen.
func rankBefore(a, b ranked) bool {
	if a.e.count != b.e.count {
		return a.e.count > b.e.count
	}
	return a.e.first.less(b.e.first)
}

// evictBefore is the eviction order: lower count first, then least recently updated.
func evictBefore(a, b ranked) bool {
	if a.e.count != b.e.count {
		return a.e.count < b.e.count
	}
	return a.e.last < b.e.last
}

// boundedHeap holds the best items seen so far. The root is the worst of them.
type boundedHeap struct {
	items  []ranked
	before func(a, b ranked) bool
}

func (h *boundedHeap) Len() int           { return len(h.items) }
func (h *boundedHeap) Less(i, j int) bool { return h.before(h.items[j], h.items[i]) }
func (h *boundedHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *boundedHeap) Push(x any)         { h.items = append(h.items, x.(ranked)) }
func (h *boundedHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// selectFirst returns the k entries of m that come first under before, in
// that order, skipping keys for which skip returns true. It costs
// O(n log k) and never sorts the whole map.
func selectFirst(m map[string]*entry, k int, before func(a, b ranked) bool, skip func(string) bool) []ranked {
	if k <= 0 || len(m) == 0 {
		return nil
	}
	if k > len(m) {
		k = len(m)
	}

	h := &boundedHeap{items: make([]ranked, 0, k), before: before}
	for key, e := range m {
		if skip != nil && skip(key) {
			continue
		}
		it := ranked{key: key, e: e}
		if h.Len() < k {
			heap.Push(h, it)
			continue
		}
		if before(it, h.items[0]) {
			h.items[0] = it
			heap.Fix(h, 0)
		}
	}

	out := h.items
	slices.SortFunc(out, func(a, b ranked) int {
		switch {
		case before(a, b):
			return -1
		case before(b, a):
			return 1
		default:
			return 0
		}
	})
	return out
}
