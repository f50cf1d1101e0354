package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DiskStore writes BuildRecords as JSON files under a lazily-created
// directory, typically <target-dir>/.cargo-builder/runs so records
// survive across invocations but vanish with cargo clean.
type DiskStore struct {
	mu      sync.Mutex
	dir     string
	created bool
}

// NewDiskStore creates a DiskStore rooted at dir. The directory is
// created on the first Save.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes a BuildRecord as a JSON file to disk.
func (s *DiskStore) Save(record *BuildRecord) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshalling record %s: %w", record.ID, err)
	}
	path := filepath.Join(s.dir, record.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing record %s: %w", record.ID, err)
	}
	return nil
}

// Load reads a BuildRecord from disk.
func (s *DiskStore) Load(id string) (*BuildRecord, error) {
	path := filepath.Join(s.dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	var record BuildRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshalling record %s: %w", id, err)
	}
	return &record, nil
}

// List reads every record in the directory and returns them
// newest-first. A directory that does not exist yet yields an empty
// list.
func (s *DiskStore) List(limit int) ([]*BuildRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing records in %s: %w", s.dir, err)
	}

	var records []*BuildRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		record, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			// Skip corrupt entries rather than failing the listing.
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *DiskStore) ensureDir() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating record directory %s: %w", s.dir, err)
	}
	s.created = true
	return nil
}
