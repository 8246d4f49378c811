// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// pageColumns lists all columns for pages SELECTs.
const pageColumns = `id, path, depth, title, slug, kind, live, created_at, updated_at`

// maxChildren is the number of siblings a path step can address.
const maxChildren = 9999

// PageStore handles the base page tree shared by every kind.
type PageStore struct {
	db *sql.DB
}

// NewPageStore creates a new PageStore with the given database connection.
func NewPageStore(db *sql.DB) *PageStore {
	return &PageStore{db: db}
}

// scanPage scans a single pages row.
func scanPage(scanner interface{ Scan(...any) error }) (*models.Page, error) {
	var p models.Page
	err := scanner.Scan(
		&p.ID, &p.Path, &p.Depth, &p.Title, &p.Slug, &p.Kind, &p.Live,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByID retrieves a page by its UUID. Returns nil if not found.
func (s *PageStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, `
		SELECT `+pageColumns+` FROM pages WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find page by id: %w", err)
	}
	return p, nil
}

// ListByKind returns all pages of the given kind in tree order.
func (s *PageStore) ListByKind(ctx context.Context, kind string) ([]models.Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pageColumns+` FROM pages WHERE kind = $1 ORDER BY path
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("list pages by kind: %w", err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

// rootLockKey serializes top-level inserts, which have no parent row to lock.
const rootLockKey = 0x7265766965770001

// InsertRoot creates a new top-level page. tx must be a transaction so the
// advisory lock covers the insert.
func (s *PageStore) InsertRoot(ctx context.Context, tx DBTX, p *models.Page) (*models.Page, error) {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(rootLockKey)); err != nil {
		return nil, fmt.Errorf("lock page roots: %w", err)
	}

	var last sql.NullString
	err := tx.QueryRowContext(ctx, `
		SELECT MAX(path) FROM pages WHERE depth = 1
	`).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("find last root: %w", err)
	}

	path, err := nextChildPath("", last.String)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, tx, p, path, 1)
}

// InsertChild creates p as the last child of parentID. The parent row is
// locked so concurrent inserts under the same parent get distinct paths.
func (s *PageStore) InsertChild(ctx context.Context, tx DBTX, parentID uuid.UUID, p *models.Page) (*models.Page, error) {
	var parentPath string
	var parentDepth int
	err := tx.QueryRowContext(ctx, `
		SELECT path, depth FROM pages WHERE id = $1 FOR UPDATE
	`, parentID).Scan(&parentPath, &parentDepth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parent page %s: %w", parentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock parent page: %w", err)
	}

	var last sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(path) FROM pages WHERE path LIKE $1 || '%' AND depth = $2
	`, parentPath, parentDepth+1).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("find last child: %w", err)
	}

	path, err := nextChildPath(parentPath, last.String)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, tx, p, path, parentDepth+1)
}

func (s *PageStore) insert(ctx context.Context, tx DBTX, p *models.Page, path string, depth int) (*models.Page, error) {
	created, err := scanPage(tx.QueryRowContext(ctx, `
		INSERT INTO pages (path, depth, title, slug, kind, live)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+pageColumns,
		path, depth, p.Title, p.Slug, p.Kind, p.Live,
	))
	if err != nil {
		return nil, fmt.Errorf("insert page: %w", err)
	}
	return created, nil
}

// UpdateContent writes the page's title, slug and live flag.
func (s *PageStore) UpdateContent(ctx context.Context, tx DBTX, p *models.Page) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE pages SET title = $1, slug = $2, live = $3, updated_at = NOW()
		WHERE id = $4
	`, p.Title, p.Slug, p.Live, p.ID)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	return nil
}

// SetLive publishes or unpublishes a page.
func (s *PageStore) SetLive(ctx context.Context, id uuid.UUID, live bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages SET live = $1, updated_at = NOW() WHERE id = $2
	`, live, id)
	if err != nil {
		return fmt.Errorf("set page live: %w", err)
	}
	return nil
}

// Delete removes a page and its subtree. Kind rows cascade. Returns
// ErrPageInUse when a page in the subtree roots a site.
func (s *PageStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pages
		WHERE path LIKE (SELECT path FROM pages WHERE id = $1) || '%'
	`, id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("delete page %s: %w", id, ErrPageInUse)
	}
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

// nextChildPath returns the path following lastChild below parentPath.
// An empty lastChild yields the first child.
func nextChildPath(parentPath, lastChild string) (string, error) {
	next := 1
	if lastChild != "" {
		if len(lastChild) != len(parentPath)+models.PathStepLen {
			return "", fmt.Errorf("malformed page path %q", lastChild)
		}
		n, err := strconv.Atoi(lastChild[len(parentPath):])
		if err != nil {
			return "", fmt.Errorf("malformed page path %q: %w", lastChild, err)
		}
		next = n + 1
	}
	if next > maxChildren {
		return "", fmt.Errorf("page %q has too many children", parentPath)
	}
	return fmt.Sprintf("%s%0*d", parentPath, models.PathStepLen, next), nil
}
