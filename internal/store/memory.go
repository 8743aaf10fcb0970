package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryDocuments is a map-backed Documents implementation for dev/testing.
type MemoryDocuments struct {
	mu   sync.Mutex
	data map[string][]Document // keyed by collection, insertion order

	// FailWrites / FailReads force errors for failure-path tests.
	FailWrites error
	FailReads  error
}

// NewMemoryDocuments creates an empty in-memory store.
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{data: make(map[string][]Document)}
}

// Create appends a document under the collection.
func (s *MemoryDocuments) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return "", s.FailWrites
	}
	id := uuid.NewString()
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.data[collection] = append(s.data[collection], Document{ID: id, Fields: copied})
	return id, nil
}

// Query filters on field equality and optionally sorts by one field.
func (s *MemoryDocuments) Query(ctx context.Context, collection string, filters []Filter, order *Order) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	var res []Document
	for _, doc := range s.data[collection] {
		if matches(doc, filters) {
			res = append(res, doc)
		}
	}
	if order != nil {
		field, desc := order.Field, order.Desc
		sort.SliceStable(res, func(i, j int) bool {
			a, b := res[i].String(field), res[j].String(field)
			if desc {
				return a > b
			}
			return a < b
		})
	}
	return res, nil
}

// Get returns a document by id.
func (s *MemoryDocuments) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return Document{}, s.FailReads
	}
	for _, doc := range s.data[collection] {
		if doc.ID == id {
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}

// Delete removes a document by id.
func (s *MemoryDocuments) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	docs := s.data[collection]
	for i, doc := range docs {
		if doc.ID == id {
			s.data[collection] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if doc.Fields[f.Field] != f.Value {
			return false
		}
	}
	return true
}
