package frontier

import "sync/atomic"

// Budget caps the number of pages dispatched over a crawl. It only grows;
// a page that fails still consumes its slot.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget returns a budget of limit pages. A limit <= 0 is unlimited.
func NewBudget(limit int) *Budget {
	return &Budget{limit: int64(limit)}
}

// Acquire reserves one page. It returns false once the budget is spent.
func (b *Budget) Acquire() bool {
	for {
		used := b.used.Load()
		if b.limit > 0 && used >= b.limit {
			return false
		}
		if b.used.CompareAndSwap(used, used+1) {
			return true
		}
	}
}

// Used reports how many pages have been reserved.
func (b *Budget) Used() int {
	return int(b.used.Load())
}

// Exhausted reports whether no further page can be reserved.
func (b *Budget) Exhausted() bool {
	return b.limit > 0 && b.used.Load() >= b.limit
}
