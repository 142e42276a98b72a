package analytics

import (
	"container/list"
	"sync"
	"time"
)

// DefaultDedupCapacity bounds the writer memory when none is configured.
const DefaultDedupCapacity = 1024

// WriteRecord is what a SyncWriter remembers about its last write for a pair.
type WriteRecord struct {
	Key       string
	WrittenAt time.Time
}

// DedupMemory stores the last write per influencer/platform pair.
type DedupMemory interface {
	Get(pair string) (WriteRecord, bool)
	Put(pair string, rec WriteRecord)
}

// LRUMemory is a bounded, least-recently-used DedupMemory.
type LRUMemory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	pair string
	rec  WriteRecord
}

// NewLRUMemory returns a memory holding at most capacity pairs.
func NewLRUMemory(capacity int) *LRUMemory {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &LRUMemory{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (m *LRUMemory) Get(pair string) (WriteRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[pair]
	if !ok {
		return WriteRecord{}, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*lruEntry).rec, true
}

func (m *LRUMemory) Put(pair string, rec WriteRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[pair]; ok {
		el.Value.(*lruEntry).rec = rec
		m.order.MoveToFront(el)
		return
	}

	m.items[pair] = m.order.PushFront(&lruEntry{pair: pair, rec: rec})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*lruEntry).pair)
	}
}

// Len returns the number of remembered pairs.
func (m *LRUMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
