// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Review field (column) names, shared by every kind table.
const (
	FieldLastReviewDate           = "last_review_date"
	FieldCurrentVersionRef        = "current_version_ref"
	FieldCurrentVersionCompiledBy = "current_version_compiled_by"
	FieldCustomReviewFrequency    = "custom_review_frequency"
	FieldNextReviewDate           = "next_review_date"
)

// Column limits for the descriptive review fields.
const (
	MaxVersionRefLen        = 20
	MaxVersionCompiledByLen = 255

	// MaxCustomReviewFrequency bounds a per-item override to a century.
	MaxCustomReviewFrequency = 1200
)

var (
	// ErrInconsistentSchedule flags a next review date without a last review
	// date. It indicates a bug in a write path, never a user error.
	ErrInconsistentSchedule = errors.New("next review date set without last review date")

	// ErrInvalidReviewFields is returned when review metadata fails validation.
	ErrInvalidReviewFields = errors.New("invalid review fields")
)

// ReviewFields is the review metadata stored per kind. NextReviewDate is
// derived and must only be written by the scheduling code.
type ReviewFields struct {
	LastReviewDate           *time.Time `json:"last_review_date,omitempty"`
	CurrentVersionRef        string     `json:"current_version_ref"`
	CurrentVersionCompiledBy string     `json:"current_version_compiled_by"`
	CustomReviewFrequency    *int       `json:"custom_review_frequency,omitempty"`
	NextReviewDate           *time.Time `json:"next_review_date,omitempty"`
}

// Validate checks column limits and the schedule invariant.
func (f ReviewFields) Validate() error {
	if utf8.RuneCountInString(f.CurrentVersionRef) > MaxVersionRefLen {
		return fmt.Errorf("%w: current version ref longer than %d characters", ErrInvalidReviewFields, MaxVersionRefLen)
	}
	if utf8.RuneCountInString(f.CurrentVersionCompiledBy) > MaxVersionCompiledByLen {
		return fmt.Errorf("%w: compiled by longer than %d characters", ErrInvalidReviewFields, MaxVersionCompiledByLen)
	}
	if f.CustomReviewFrequency != nil && *f.CustomReviewFrequency <= 0 {
		return fmt.Errorf("%w: custom review frequency must be positive", ErrInvalidReviewFields)
	}
	if f.CustomReviewFrequency != nil && *f.CustomReviewFrequency > MaxCustomReviewFrequency {
		return fmt.Errorf("%w: custom review frequency above %d months", ErrInvalidReviewFields, MaxCustomReviewFrequency)
	}
	if f.LastReviewDate == nil && f.NextReviewDate != nil {
		return ErrInconsistentSchedule
	}
	return nil
}

// Reviewable is the capability every participating kind implements.
type Reviewable interface {
	PageRef() *Page
	ReviewFields() ReviewFields
	SetReviewFields(ReviewFields)
}

// ReviewablePage is a page of a participating kind joined with its review
// row. SiteID is derived from the page's position in the tree.
type ReviewablePage struct {
	Page
	SiteID uuid.UUID    `json:"site_id"`
	Review ReviewFields `json:"review"`
}

// PageRef returns the base page.
func (p *ReviewablePage) PageRef() *Page { return &p.Page }

// ReviewFields returns a copy of the review metadata.
func (p *ReviewablePage) ReviewFields() ReviewFields { return p.Review }

// SetReviewFields replaces the review metadata.
func (p *ReviewablePage) SetReviewFields(f ReviewFields) { p.Review = f }

// ReviewRow is one record of a cross-kind listing. The dates are only
// populated when the listing was annotated.
type ReviewRow struct {
	Page
	LastReviewDate *time.Time `json:"last_review_date,omitempty"`
	NextReviewDate *time.Time `json:"next_review_date,omitempty"`
	Annotated      bool       `json:"-"`
}
