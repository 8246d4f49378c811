// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"reviewd/internal/models"
	"reviewd/internal/slug"
)

// seedPage describes a development page below the default site's root.
type seedPage struct {
	title string
	kind  string
	table string
}

var seedPages = []seedPage{
	{"Acceptable Use Policy", models.PolicyPageKind.Name, models.PolicyPageKind.Table},
	{"Data Retention Policy", models.PolicyPageKind.Name, models.PolicyPageKind.Table},
	{"Onboarding Guidance", models.GuidancePageKind.Name, models.GuidancePageKind.Table},
	{"About Us", models.SimplePageKind, ""},
}

// Seed populates the database with a default site and a handful of pages
// of each kind. It is a no-op when any site already exists. Review dates
// are left empty; they are set through the review API.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sites").Scan(&count); err != nil {
		return fmt.Errorf("seed check sites: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var rootID string
	err = tx.QueryRow(`
		INSERT INTO pages (path, depth, title, slug, kind)
		VALUES ('0001', 1, 'Home', 'home', $1)
		RETURNING id
	`, models.SimplePageKind).Scan(&rootID)
	if err != nil {
		return fmt.Errorf("seed root page: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO sites (hostname, site_name, root_page_id, is_default)
		VALUES ('localhost', 'Development', $1, TRUE)
	`, rootID); err != nil {
		return fmt.Errorf("seed site: %w", err)
	}

	for i, p := range seedPages {
		var id string
		path := fmt.Sprintf("0001%04d", i+1)
		err := tx.QueryRow(`
			INSERT INTO pages (path, depth, title, slug, kind)
			VALUES ($1, 2, $2, $3, $4)
			RETURNING id
		`, path, p.title, slug.Generate(p.title), p.kind).Scan(&id)
		if err != nil {
			return fmt.Errorf("seed page %q: %w", p.title, err)
		}
		if p.table == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO `+p.table+` (page_id) VALUES ($1)`, id); err != nil {
			return fmt.Errorf("seed review row %q: %w", p.title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with default site", "hostname", "localhost", "pages", len(seedPages)+1)
	return nil
}
