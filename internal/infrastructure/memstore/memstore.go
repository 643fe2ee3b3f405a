// Package memstore is an in-memory implementation of the document
// store contract. It backs the test suite and local runs without a
// Firestore project; documents are kept as JSON so reads decode through
// the same struct tags as any other backend.
package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kabantay/kabantay-api/internal/domain/repository"
)

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string][]byte
}

func New() *Store {
	return &Store{collections: make(map[string]map[string][]byte)}
}

type document struct {
	id  string
	raw []byte
}

func (d document) ID() string            { return d.id }
func (d document) DataTo(dest any) error { return json.Unmarshal(d.raw, dest) }

func (s *Store) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...repository.Filter) ([]repository.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(collection, filters)
}

func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(collection, id, data)
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.get(collection, id)
	if err != nil {
		return err
	}
	merged := map[string]any{}
	if err := doc.DataTo(&merged); err != nil {
		return err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return s.set(collection, id, merged)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delete(collection, id)
	return nil
}

func (s *Store) ApplyBatch(ctx context.Context, writes []repository.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Encode everything first so a marshal failure cannot leave a
	// partial batch behind.
	type staged struct {
		collection, id string
		raw            []byte
		delete         bool
	}
	st := make([]staged, 0, len(writes))
	for _, w := range writes {
		if w.Delete {
			st = append(st, staged{collection: w.Collection, id: w.ID, delete: true})
			continue
		}
		raw, err := json.Marshal(w.Data)
		if err != nil {
			return fmt.Errorf("memstore: encode %s/%s: %w", w.Collection, w.ID, err)
		}
		st = append(st, staged{collection: w.Collection, id: w.ID, raw: raw})
	}
	for _, w := range st {
		if w.delete {
			s.delete(w.collection, w.id)
			continue
		}
		s.ensure(w.collection)[w.id] = w.raw
	}
	return nil
}

func (s *Store) RunAtomic(ctx context.Context, fn func(tx repository.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{store: s}
	if err := fn(t); err != nil {
		return err
	}
	if t.err != nil {
		return t.err
	}
	for _, w := range t.writes {
		if w.delete {
			s.delete(w.collection, w.id)
			continue
		}
		s.ensure(w.collection)[w.id] = w.raw
	}
	return nil
}

type stagedWrite struct {
	collection, id string
	raw            []byte
	delete         bool
}

// txn stages writes while the store mutex is held, so reads observe
// the pre-transaction state and writers cannot interleave.
type txn struct {
	store  *Store
	writes []stagedWrite
	err    error
}

func (t *txn) Get(collection, id string) (repository.Document, error) {
	return t.store.get(collection, id)
}

func (t *txn) Query(collection string, filters ...repository.Filter) ([]repository.Document, error) {
	return t.store.query(collection, filters)
}

func (t *txn) Set(collection, id string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		t.err = err
		return
	}
	t.writes = append(t.writes, stagedWrite{collection: collection, id: id, raw: raw})
}

func (t *txn) Delete(collection, id string) {
	t.writes = append(t.writes, stagedWrite{collection: collection, id: id, delete: true})
}

// Callers must hold s.mu for the unexported helpers below.

func (s *Store) ensure(collection string) map[string][]byte {
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string][]byte)
		s.collections[collection] = col
	}
	return col
}

func (s *Store) get(collection, id string) (repository.Document, error) {
	raw, ok := s.collections[collection][id]
	if !ok {
		return nil, repository.ErrDocNotFound
	}
	return document{id: id, raw: raw}, nil
}

func (s *Store) set(collection, id string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.ensure(collection)[id] = raw
	return nil
}

func (s *Store) delete(collection, id string) {
	delete(s.collections[collection], id)
}

func (s *Store) query(collection string, filters []repository.Filter) ([]repository.Document, error) {
	var docs []repository.Document
	for id, raw := range s.collections[collection] {
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		if matches(fields, filters) {
			docs = append(docs, document{id: id, raw: raw})
		}
	}
	return docs, nil
}

func matches(fields map[string]json.RawMessage, filters []repository.Filter) bool {
	for _, f := range filters {
		got, ok := fields[f.Field]
		if !ok {
			return false
		}
		want, err := json.Marshal(f.Value)
		if err != nil {
			return false
		}
		if !bytes.Equal(bytes.TrimSpace(got), want) {
			return false
		}
	}
	return true
}

var _ repository.DocumentStore = (*Store)(nil)
