// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Site is a tenant of the page tree. All pages at or below the site's root
// page belong to it.
type Site struct {
	ID         uuid.UUID `json:"id"`
	Hostname   string    `json:"hostname"`
	SiteName   string    `json:"site_name"`
	RootPageID uuid.UUID `json:"root_page_id"`
	RootPath   string    `json:"root_path"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

// Contains reports whether the page at path belongs to the site's tree.
func (s *Site) Contains(path string) bool {
	return s.RootPath != "" && strings.HasPrefix(path, s.RootPath)
}

// SiteForPath returns the site owning path. When site trees are nested the
// deepest root wins. Returns nil if no site contains the path.
func SiteForPath(sites []Site, path string) *Site {
	var best *Site
	for i := range sites {
		s := &sites[i]
		if !s.Contains(path) {
			continue
		}
		if best == nil || len(s.RootPath) > len(best.RootPath) {
			best = s
		}
	}
	return best
}
