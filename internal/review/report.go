// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// Dashboard panel limits.
const (
	DefaultPanelLimit = 10
	MaxPanelLimit     = 50
)

// DateRange is an inclusive range; either bound may be open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) conditions(field string) []Condition {
	var conds []Condition
	if r.From != nil {
		conds = append(conds, OnOrAfter(field, *r.From))
	}
	if r.To != nil {
		conds = append(conds, OnOrBefore(field, *r.To))
	}
	return conds
}

// ReportFilter selects the rows of the periodic review report.
type ReportFilter struct {
	Kind       string
	LastReview DateRange
	NextReview DateRange
}

// PeriodicReport narrows c to reviewed items matching f, annotated and
// ordered by next review date.
func (a *Aggregator) PeriodicReport(c Collection, f ReportFilter) (Collection, error) {
	if f.Kind != "" {
		if !a.registry.Participates(f.Kind) {
			return Collection{}, fmt.Errorf("report kind %q: %w", f.Kind, ErrUnknownKind)
		}
		c = c.OfKind(f.Kind)
	}

	conds := []Condition{NotNull(models.FieldLastReviewDate)}
	conds = append(conds, f.LastReview.conditions(models.FieldLastReviewDate)...)
	conds = append(conds, f.NextReview.conditions(models.FieldNextReviewDate)...)

	c = a.FilterAcrossKinds(c, conds...)
	return a.Annotate(c).OrderBy(models.FieldNextReviewDate, false).OrderBy("path", false), nil
}

// Visibility narrows a collection to the pages a caller may see. Permission
// rules live outside this package; the aggregator only applies the result.
type Visibility interface {
	Restrict(ctx context.Context, c Collection) (Collection, error)
}

// AllVisible is the Visibility that hides nothing.
type AllVisible struct{}

// Restrict returns c unchanged.
func (AllVisible) Restrict(_ context.Context, c Collection) (Collection, error) { return c, nil }

// PageIDVisibility limits collections to a fixed set of page IDs.
type PageIDVisibility []uuid.UUID

// Restrict keeps only the listed pages.
func (v PageIDVisibility) Restrict(_ context.Context, c Collection) (Collection, error) {
	return c.Restrict(v), nil
}

// ClampLimit applies the dashboard panel bounds to a requested limit.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultPanelLimit
	case n > MaxPanelLimit:
		return MaxPanelLimit
	}
	return n
}
