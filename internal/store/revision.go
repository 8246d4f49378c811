// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// revisionColumns lists all columns for page_revisions SELECTs.
const revisionColumns = `id, page_id, title, slug, review, created_at`

// RevisionStore provides access to page revision snapshots.
type RevisionStore struct {
	db *sql.DB
}

// NewRevisionStore creates a new RevisionStore backed by the given database.
func NewRevisionStore(db *sql.DB) *RevisionStore {
	return &RevisionStore{db: db}
}

// scanRevision scans a single page_revisions row into a PageRevision.
func scanRevision(scanner interface{ Scan(...any) error }) (*models.PageRevision, error) {
	var (
		r      models.PageRevision
		review []byte
	)
	if err := scanner.Scan(&r.ID, &r.PageID, &r.Title, &r.Slug, &review, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(review, &r.Review); err != nil {
		return nil, fmt.Errorf("decode revision review fields: %w", err)
	}
	return &r, nil
}

// Create stores a snapshot and returns it with the generated ID.
func (s *RevisionStore) Create(ctx context.Context, rev *models.PageRevision) (*models.PageRevision, error) {
	review, err := json.Marshal(rev.Review)
	if err != nil {
		return nil, fmt.Errorf("encode revision review fields: %w", err)
	}
	created, err := scanRevision(s.db.QueryRowContext(ctx, `
		INSERT INTO page_revisions (page_id, title, slug, review)
		VALUES ($1, $2, $3, $4)
		RETURNING `+revisionColumns,
		rev.PageID, rev.Title, rev.Slug, review,
	))
	if err != nil {
		return nil, fmt.Errorf("create revision: %w", err)
	}
	return created, nil
}

// FindByID returns a single revision. Returns nil if not found.
func (s *RevisionStore) FindByID(ctx context.Context, id uuid.UUID) (*models.PageRevision, error) {
	r, err := scanRevision(s.db.QueryRowContext(ctx, `
		SELECT `+revisionColumns+` FROM page_revisions WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find revision: %w", err)
	}
	return r, nil
}

// ListByPageID returns all revisions for a page, newest first.
func (s *RevisionStore) ListByPageID(ctx context.Context, pageID uuid.UUID) ([]*models.PageRevision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+revisionColumns+`
		FROM page_revisions
		WHERE page_id = $1
		ORDER BY created_at DESC
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revisions []*models.PageRevision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}
