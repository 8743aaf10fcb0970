package store

import (
	"context"
	"errors"
)

// Collection names used across the service.
const (
	CollectionUsers      = "users"
	CollectionStudents   = "students"
	CollectionAttendance = "attendance"
)

// ErrNotFound is returned by Get when no document matches the id.
var ErrNotFound = errors.New("document not found")

// Document is a stored record: an id plus a flat field map.
type Document struct {
	ID     string
	Fields map[string]any
}

// String returns a string field, or "" when absent or not a string.
func (d Document) String(key string) string {
	if v, ok := d.Fields[key].(string); ok {
		return v
	}
	return ""
}

// Filter is an equality condition on a named field.
type Filter struct {
	Field string
	Value any
}

// Order is an optional single sort key.
type Order struct {
	Field string
	Desc  bool
}

// Documents is the narrow persistence interface the service depends on.
// Backends: Postgres (JSONB) for deployments, in-memory for dev and tests.
type Documents interface {
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Query(ctx context.Context, collection string, filters []Filter, order *Order) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Delete exists for roster management; attendance records are never deleted.
	Delete(ctx context.Context, collection, id string) error
}
