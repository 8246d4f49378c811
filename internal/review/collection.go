// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package review

import (
	"time"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// Op is a comparison applied to a review date field.
type Op int

const (
	OpNotNull Op = iota
	OpBefore
	OpOnOrAfter
	OpOnOrBefore
)

// Condition is one predicate on a review date field.
type Condition struct {
	Field string
	Op    Op
	Value time.Time
}

// NotNull matches items where field is set.
func NotNull(field string) Condition { return Condition{Field: field, Op: OpNotNull} }

// Before matches field < t.
func Before(field string, t time.Time) Condition {
	return Condition{Field: field, Op: OpBefore, Value: t}
}

// OnOrAfter matches field >= t.
func OnOrAfter(field string, t time.Time) Condition {
	return Condition{Field: field, Op: OpOnOrAfter, Value: t}
}

// OnOrBefore matches field <= t.
func OnOrBefore(field string, t time.Time) Condition {
	return Condition{Field: field, Op: OpOnOrBefore, Value: t}
}

// InMonth matches field within the calendar month containing t.
func InMonth(field string, t time.Time) []Condition {
	first := FirstOfMonth(t)
	return []Condition{OnOrAfter(field, first), Before(field, AddMonths(first, 1))}
}

// FirstOfMonth returns midnight UTC of the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Order is one sort key.
type Order struct {
	Field string
	Desc  bool
}

// Collection describes a query over the page tree. It is a value: every
// method returns a modified copy and leaves the receiver untouched. The
// zero value is the base collection of every page.
type Collection struct {
	kind       string
	liveOnly   bool
	rootPath   string
	restricted bool
	pageIDs    []uuid.UUID
	filters    [][]Condition
	annotated  bool
	orders     []Order
	limit      int
	empty      bool
	unjoined   bool
}

// All returns the base collection spanning every kind.
func All() Collection { return Collection{} }

// OfKind narrows the collection to one concrete kind.
func (c Collection) OfKind(kind string) Collection {
	c = c.clone()
	c.kind = kind
	return c
}

// Live keeps only published pages.
func (c Collection) Live() Collection {
	c = c.clone()
	c.liveOnly = true
	return c
}

// InTree keeps pages at or below the page at rootPath.
func (c Collection) InTree(rootPath string) Collection {
	c = c.clone()
	c.rootPath = rootPath
	return c
}

// Restrict keeps only the given page IDs. Restricting twice intersects.
func (c Collection) Restrict(ids []uuid.UUID) Collection {
	c = c.clone()
	if !c.restricted {
		c.pageIDs = append([]uuid.UUID(nil), ids...)
		c.restricted = true
		return c
	}
	keep := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var out []uuid.UUID
	for _, id := range c.pageIDs {
		if keep[id] {
			out = append(out, id)
		}
	}
	c.pageIDs = out
	return c
}

// OrderBy appends a sort key.
func (c Collection) OrderBy(field string, desc bool) Collection {
	c = c.clone()
	c.orders = append(c.orders, Order{Field: field, Desc: desc})
	return c
}

// Limit caps the number of rows. Zero or less means no limit.
func (c Collection) Limit(n int) Collection {
	c = c.clone()
	c.limit = n
	return c
}

// Kind returns the concrete kind, or "" for the base collection.
func (c Collection) Kind() string { return c.kind }

// Annotated reports whether review dates are attached to each row.
func (c Collection) Annotated() bool { return c.annotated }

// IsEmpty reports whether the collection can match nothing.
func (c Collection) IsEmpty() bool {
	return c.empty || (c.restricted && len(c.pageIDs) == 0)
}

// withoutReview drops annotations, review filters and review sort keys,
// and stops the kind tables from being joined at all.
func (c Collection) withoutReview() Collection {
	c = c.clone()
	c.unjoined = true
	c.annotated = false
	c.filters = nil
	c.empty = false
	orders := c.orders[:0]
	for _, o := range c.orders {
		if !isReviewDate(o.Field) {
			orders = append(orders, o)
		}
	}
	c.orders = orders
	return c
}

func (c Collection) clone() Collection {
	c.pageIDs = append([]uuid.UUID(nil), c.pageIDs...)
	c.orders = append([]Order(nil), c.orders...)
	filters := make([][]Condition, len(c.filters))
	for i, g := range c.filters {
		filters[i] = append([]Condition(nil), g...)
	}
	if c.filters == nil {
		filters = nil
	}
	c.filters = filters
	return c
}

func isReviewDate(field string) bool {
	return field == models.FieldLastReviewDate || field == models.FieldNextReviewDate
}
