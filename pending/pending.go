// Package pending tracks in-flight IPFS pre-fetches per block so the
// pipeline can advance its persisted cursor only once every fetch a block
// depends on has completed, in block order.
package pending

import (
	"sort"
	"sync"
)

type entry struct {
	cursor  string
	pending int
}

// Manager is the single coordination point for in-flight fetch counts. All
// methods are safe for concurrent use; callers from the bounded-parallelism
// fetch pool call CompleteOne concurrently while the pipeline's single
// writer calls AddBlock sequentially as blocks are observed.
type Manager struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	order   []uint64 // block numbers present in entries, kept sorted ascending
}

// New builds an empty Manager.
func New() *Manager {
	return &Manager{entries: make(map[uint64]*entry)}
}

// AddBlock registers a block as having count outstanding fetches. A count
// of zero is a no-op: a block with nothing to fetch never needs tracking.
func (m *Manager) AddBlock(block uint64, cursor string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[block]; exists {
		return
	}
	m.entries[block] = &entry{cursor: cursor, pending: count}
	i := sort.Search(len(m.order), func(i int) bool { return m.order[i] >= block })
	m.order = append(m.order, 0)
	copy(m.order[i+1:], m.order[i:])
	m.order[i] = block
}

// CompleteOne records one completed fetch for block. It returns the most
// advanced (block, cursor) pair whose persistence can now be acknowledged:
// that happens only when block's completion brings its pending count to
// zero AND block is (or becomes, after draining) the current minimum
// tracked block. Draining walks forward through subsequent blocks that are
// already at zero pending, so a single call can jump the cursor past
// several blocks whose fetches all finished out of order.
func (m *Manager) CompleteOne(block uint64) (advancedBlock uint64, advancedCursor string, advanced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[block]
	if !ok {
		return 0, "", false
	}
	e.pending--
	if e.pending > 0 {
		return 0, "", false
	}
	if len(m.order) == 0 || m.order[0] != block {
		return 0, "", false
	}

	for len(m.order) > 0 {
		b := m.order[0]
		cur := m.entries[b]
		if cur.pending > 0 {
			break
		}
		advancedBlock, advancedCursor, advanced = b, cur.cursor, true
		delete(m.entries, b)
		m.order = m.order[1:]
	}
	return
}

// Len returns the number of blocks currently tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
