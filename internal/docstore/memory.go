package docstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Record
	now  func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]Record),
		now:  time.Now,
	}
}

// QueryByField scans the collection for matching records.
func (s *MemoryStore) QueryByField(ctx context.Context, collection, field, value string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "QueryByField", Collection: collection, Err: err}
	}
	if err := validateName(collection); err != nil {
		return nil, &StoreError{Op: "QueryByField", Collection: collection, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.docs[collection] {
		if got, ok := fieldText(rec.Data, field); ok && got == value {
			out = append(out, copyRecord(rec))
		}
	}
	sortRecords(out)
	return out, nil
}

// WriteRecord replaces or merges the record.
func (s *MemoryStore) WriteRecord(ctx context.Context, collection, key string, data map[string]any, opts WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: err}
	}
	if err := validateRef(collection, key); err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]Record)
		s.docs[collection] = coll
	}

	next := mergeData(nil, data)
	if existing, ok := coll[key]; ok && opts.Merge {
		next = mergeData(existing.Data, data)
	}

	coll[key] = Record{
		Collection: collection,
		Key:        key,
		Data:       next,
		UpdatedAt:  s.now().UTC(),
	}
	return nil
}

// GetRecord returns a copy of the stored record.
func (s *MemoryStore) GetRecord(ctx context.Context, collection, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: err}
	}
	if err := validateRef(collection, key); err != nil {
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[collection][key]
	if !ok {
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: ErrNotFound}
	}
	out := copyRecord(rec)
	return &out, nil
}

// Len returns the number of records in collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

func copyRecord(rec Record) Record {
	rec.Data = mergeData(nil, rec.Data)
	return rec
}
