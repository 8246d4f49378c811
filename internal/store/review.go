// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// reviewColumns lists the review columns every kind table carries, in scan order.
var reviewColumns = []string{
	models.FieldLastReviewDate,
	models.FieldCurrentVersionRef,
	models.FieldCurrentVersionCompiledBy,
	models.FieldCustomReviewFrequency,
	models.FieldNextReviewDate,
}

// ReviewStore reads and writes the per-kind review rows. Every method takes
// the kind's descriptor because each kind keeps its rows in its own table.
type ReviewStore struct {
	db *sql.DB
}

// NewReviewStore creates a new ReviewStore backed by the given database.
func NewReviewStore(db *sql.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

// Get loads a page joined with its review row. Returns nil if the page has
// no row in the kind's table.
func (s *ReviewStore) Get(ctx context.Context, kind models.KindDescriptor, pageID uuid.UUID) (*models.ReviewablePage, error) {
	return s.get(ctx, s.db, kind, pageID, "")
}

// GetForUpdate is Get with the review row locked until tx ends.
func (s *ReviewStore) GetForUpdate(ctx context.Context, tx DBTX, kind models.KindDescriptor, pageID uuid.UUID) (*models.ReviewablePage, error) {
	return s.get(ctx, tx, kind, pageID, " FOR UPDATE OF k")
}

func (s *ReviewStore) get(ctx context.Context, q DBTX, kind models.KindDescriptor, pageID uuid.UUID, lock string) (*models.ReviewablePage, error) {
	var (
		item   models.ReviewablePage
		last   sql.NullTime
		custom sql.NullInt64
		next   sql.NullTime
	)
	err := q.QueryRowContext(ctx, `
		SELECT p.id, p.path, p.depth, p.title, p.slug, p.kind, p.live, p.created_at, p.updated_at,
		       k.last_review_date, k.current_version_ref, k.current_version_compiled_by,
		       k.custom_review_frequency, k.next_review_date
		FROM pages p JOIN `+quoteTable(kind.Table)+` k ON k.page_id = p.id
		WHERE p.id = $1`+lock,
		pageID,
	).Scan(
		&item.ID, &item.Path, &item.Depth, &item.Title, &item.Slug, &item.Kind, &item.Live,
		&item.CreatedAt, &item.UpdatedAt,
		&last, &item.Review.CurrentVersionRef, &item.Review.CurrentVersionCompiledBy,
		&custom, &next,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review row: %w", err)
	}

	item.Review.LastReviewDate = dateOrNil(last)
	item.Review.NextReviewDate = dateOrNil(next)
	if custom.Valid {
		v := int(custom.Int64)
		item.Review.CustomReviewFrequency = &v
	}
	return &item, nil
}

// Insert creates the review row extending an existing page.
func (s *ReviewStore) Insert(ctx context.Context, tx DBTX, kind models.KindDescriptor, pageID uuid.UUID, f models.ReviewFields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO `+quoteTable(kind.Table)+` (page_id, `+strings.Join(reviewColumns, ", ")+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, append([]any{pageID}, reviewValues(f, reviewColumns)...)...)
	if err != nil {
		return fmt.Errorf("insert review row: %w", err)
	}
	return nil
}

// Update writes the named review columns of one row. An empty column list
// writes every review column.
func (s *ReviewStore) Update(ctx context.Context, tx DBTX, kind models.KindDescriptor, pageID uuid.UUID, f models.ReviewFields, columns []string) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if len(columns) == 0 {
		columns = reviewColumns
	}

	sets := make([]string, 0, len(columns))
	for i, col := range columns {
		if !isReviewColumn(col) {
			return fmt.Errorf("update review row: unknown column %q", col)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE `+quoteTable(kind.Table)+` SET `+strings.Join(sets, ", ")+`
		WHERE page_id = $1
	`, append([]any{pageID}, reviewValues(f, columns)...)...)
	if err != nil {
		return fmt.Errorf("update review row: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update review row %s: %w", pageID, ErrNotFound)
	}
	return nil
}

// BulkRecompute sets next_review_date = last_review_date + months for every
// row of the kind inside the tree at rootPath, skipping rows without a last
// review date and rows with a custom frequency. Pages under a nested site
// root belong to that site and are left alone. It runs as one statement.
func (s *ReviewStore) BulkRecompute(ctx context.Context, tx DBTX, kind models.KindDescriptor, rootPath string, months int) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE `+quoteTable(kind.Table)+` AS k
		SET next_review_date = (k.last_review_date + make_interval(months => $1))::date
		FROM pages p
		WHERE p.id = k.page_id
		  AND p.path LIKE $2 || '%'
		  AND k.last_review_date IS NOT NULL
		  AND k.custom_review_frequency IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM sites s2
			JOIN pages r2 ON r2.id = s2.root_page_id
			WHERE r2.path LIKE $2 || '_%'
			  AND p.path LIKE r2.path || '%'
		  )
	`, months, rootPath)
	if err != nil {
		return 0, fmt.Errorf("bulk recompute %s: %w", kind.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk recompute %s rows: %w", kind.Name, err)
	}
	return n, nil
}

func isReviewColumn(col string) bool {
	for _, c := range reviewColumns {
		if c == col {
			return true
		}
	}
	return false
}

func reviewValues(f models.ReviewFields, columns []string) []any {
	vals := make([]any, 0, len(columns))
	for _, col := range columns {
		switch col {
		case models.FieldLastReviewDate:
			vals = append(vals, nullDate(f.LastReviewDate))
		case models.FieldCurrentVersionRef:
			vals = append(vals, f.CurrentVersionRef)
		case models.FieldCurrentVersionCompiledBy:
			vals = append(vals, f.CurrentVersionCompiledBy)
		case models.FieldCustomReviewFrequency:
			if f.CustomReviewFrequency == nil {
				vals = append(vals, nil)
			} else {
				vals = append(vals, *f.CustomReviewFrequency)
			}
		case models.FieldNextReviewDate:
			vals = append(vals, nullDate(f.NextReviewDate))
		}
	}
	return vals
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

func dateOrNil(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	d := time.Date(t.Time.Year(), t.Time.Month(), t.Time.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
