package report

import "sync"

// LRUStore keeps a handful of recent BuildRecords in memory in front
// of a backing Store. The long-running MCP server uses it so repeated
// cargo_inspect calls on the same runs skip the disk.
//
// Capacities are tiny, so recency is tracked with an ordered slice of
// IDs rather than a linked list.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order []string // most recently used first
	items map[string]*BuildRecord
}

// NewLRUStore creates a cache holding at most cap records that
// delegates to back on misses. Capacity must be >= 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		items: make(map[string]*BuildRecord, cap),
	}
}

// Save caches the record and writes it through to the backing store.
func (s *LRUStore) Save(record *BuildRecord) error {
	s.mu.Lock()
	s.insert(record)
	s.mu.Unlock()

	return s.back.Save(record)
}

// Load serves from the cache when possible; a miss falls through to
// the backing store and promotes the loaded record.
func (s *LRUStore) Load(id string) (*BuildRecord, error) {
	s.mu.Lock()
	if record, ok := s.items[id]; ok {
		s.promote(id)
		s.mu.Unlock()
		return record, nil
	}
	s.mu.Unlock()

	record, err := s.back.Load(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.insert(record)
	s.mu.Unlock()

	return record, nil
}

// List always delegates to the backing store; the cache holds no
// ordering information across processes.
func (s *LRUStore) List(limit int) ([]*BuildRecord, error) {
	return s.back.List(limit)
}

// insert adds or refreshes a record and evicts the least recently used
// entry once over capacity. Callers hold mu.
func (s *LRUStore) insert(record *BuildRecord) {
	if _, ok := s.items[record.ID]; ok {
		s.items[record.ID] = record
		s.promote(record.ID)
		return
	}

	s.items[record.ID] = record
	s.order = append([]string{record.ID}, s.order...)
	if len(s.order) > s.cap {
		last := s.order[len(s.order)-1]
		s.order = s.order[:len(s.order)-1]
		delete(s.items, last)
	}
}

// promote moves an existing ID to the front of the recency order.
// Callers hold mu.
func (s *LRUStore) promote(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append([]string{id}, s.order...)
}
