// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PathStepLen is the width of one level in a materialized page path.
// The root page of the tree has path "0001", its first child "00010001".
const PathStepLen = 4

// Page is a node in the hierarchical page tree. Every content kind extends
// it; Kind is the discriminator naming the concrete type of the node.
type Page struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Depth     int       `json:"depth"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Kind      string    `json:"kind"`
	Live      bool      `json:"live"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageRevision is a snapshot of a page's content taken before an edit.
// Restoring it is a content-only operation: the live scheduling fields of
// the page are never taken from the snapshot.
type PageRevision struct {
	ID        uuid.UUID    `json:"id"`
	PageID    uuid.UUID    `json:"page_id"`
	Title     string       `json:"title"`
	Slug      string       `json:"slug"`
	Review    ReviewFields `json:"review"`
	CreatedAt time.Time    `json:"created_at"`
}
