package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresDocuments stores documents in a single JSONB-backed table.
//
// Schema:
//
//	CREATE TABLE documents (
//	    id         UUID PRIMARY KEY,
//	    collection TEXT NOT NULL,
//	    fields     JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX documents_collection_idx ON documents (collection);
type PostgresDocuments struct {
	db *sql.DB
}

// NewPostgresDocuments wraps an open Postgres connection.
func NewPostgresDocuments(db *sql.DB) *PostgresDocuments {
	return &PostgresDocuments{db: db}
}

// Create appends a document and returns its generated id.
func (s *PostgresDocuments) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, collection, fields)
		VALUES ($1, $2, $3)
	`, id, collection, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Query returns documents matching every equality filter, optionally sorted
// by a single field. Sorting compares the JSONB text representation, which
// is sufficient for the RFC 3339 timestamps this service orders by.
func (s *PostgresDocuments) Query(ctx context.Context, collection string, filters []Filter, order *Order) ([]Document, error) {
	query := `SELECT id, fields FROM documents WHERE collection = $1`
	args := []any{collection}
	for _, f := range filters {
		args = append(args, f.Value)
		query += fmt.Sprintf(" AND fields->>'%s' = $%d::text", f.Field, len(args))
	}
	if order != nil {
		dir := "ASC"
		if order.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY fields->>'%s' %s", order.Field, dir)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Document
	for rows.Next() {
		var doc Document
		var payload []byte
		if err := rows.Scan(&doc.ID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &doc.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", doc.ID, err)
		}
		res = append(res, doc)
	}
	return res, rows.Err()
}

// Get returns a single document by id.
func (s *PostgresDocuments) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, fields FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	var doc Document
	var payload []byte
	if err := row.Scan(&doc.ID, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if err := json.Unmarshal(payload, &doc.Fields); err != nil {
		return Document{}, fmt.Errorf("unmarshal document %s: %w", doc.ID, err)
	}
	return doc, nil
}

// Delete removes a document by id. Missing ids are not an error.
func (s *PostgresDocuments) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	return err
}
