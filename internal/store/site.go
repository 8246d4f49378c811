// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"reviewd/internal/models"
)

// DefaultSiteCacheTTL bounds how long a site list is reused before it is
// read from the database again. Sites created or deleted by another
// process are seen after at most this long, unless Purge is called.
const DefaultSiteCacheTTL = 30 * time.Second

const (
	siteColumns  = `s.id, s.hostname, s.site_name, s.root_page_id, p.path, s.is_default, s.created_at`
	allSitesKey  = "all"
	siteCacheCap = 1
)

// SiteStore manages sites, each rooted at a page of the tree.
type SiteStore struct {
	db    *sql.DB
	cache *expirable.LRU[string, []models.Site]
}

// NewSiteStore returns a new SiteStore backed by the given database. The
// site list used to resolve a page's site is cached for ttl.
func NewSiteStore(db *sql.DB, ttl time.Duration) *SiteStore {
	if ttl <= 0 {
		ttl = DefaultSiteCacheTTL
	}
	return &SiteStore{
		db:    db,
		cache: expirable.NewLRU[string, []models.Site](siteCacheCap, nil, ttl),
	}
}

func scanSite(scanner interface{ Scan(...any) error }) (*models.Site, error) {
	var s models.Site
	err := scanner.Scan(&s.ID, &s.Hostname, &s.SiteName, &s.RootPageID, &s.RootPath, &s.IsDefault, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a site rooted at rootPageID.
func (s *SiteStore) Create(ctx context.Context, site *models.Site) (*models.Site, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sites (hostname, site_name, root_page_id, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, site.Hostname, site.SiteName, site.RootPageID, site.IsDefault).Scan(&id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create site %q: %w", site.Hostname, ErrDuplicateSite)
	}
	if err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	s.cache.Purge()
	return s.FindByID(ctx, id)
}

// Delete removes a site. Its pages are left in place.
func (s *SiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	s.cache.Purge()
	return nil
}

// Purge drops the cached site list so the next lookup reads the database.
func (s *SiteStore) Purge() {
	s.cache.Purge()
}

// FindByID returns a site with its root path. Returns nil if not found.
func (s *SiteStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx, `
		SELECT `+siteColumns+`
		FROM sites s JOIN pages p ON p.id = s.root_page_id
		WHERE s.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find site by id: %w", err)
	}
	return site, nil
}

// List returns every site ordered by hostname.
func (s *SiteStore) List(ctx context.Context) ([]models.Site, error) {
	if sites, ok := s.cache.Get(allSitesKey); ok {
		return sites, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+siteColumns+`
		FROM sites s JOIN pages p ON p.id = s.root_page_id
		ORDER BY s.hostname
	`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Add(allSitesKey, sites)
	return sites, nil
}

// ForPath returns the site owning the page at path, or nil for pages
// outside every site tree.
func (s *SiteStore) ForPath(ctx context.Context, path string) (*models.Site, error) {
	sites, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	site := models.SiteForPath(sites, path)
	if site == nil {
		return nil, nil
	}
	cp := *site
	return &cp, nil
}
