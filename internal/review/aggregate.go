// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package review

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"reviewd/internal/metrics"
	"reviewd/internal/models"
	"reviewd/internal/store"
)

// pageOrderColumns are the base page columns a collection may sort on.
var pageOrderColumns = map[string]bool{
	"path":       true,
	"title":      true,
	"created_at": true,
	"updated_at": true,
}

// Aggregator runs collections against the page tree, presenting the review
// columns of every participating kind as if they were one table.
type Aggregator struct {
	db       store.DBTX
	registry *Registry
}

// NewAggregator creates an Aggregator over db.
func NewAggregator(db store.DBTX, registry *Registry) *Aggregator {
	return &Aggregator{db: db, registry: registry}
}

// Annotate attaches last_review_date and next_review_date to each row. A
// single participating kind exposes its own columns; the base collection
// takes the first non-null value across every kind. With no participating
// kinds, or a kind that does not participate, c is returned unchanged.
func (a *Aggregator) Annotate(c Collection) Collection {
	if len(a.registry.Kinds()) == 0 {
		return c
	}
	if c.kind != "" && !a.registry.Participates(c.kind) {
		return c
	}
	c = c.clone()
	c.annotated = true
	return c
}

// FilterAcrossKinds keeps items matching every condition. On the base
// collection the conditions are evaluated against each kind's own columns
// and the results are unioned. A collection of one kind is filtered on its
// native columns; a kind that does not participate is returned unchanged.
// With no participating kinds the base collection becomes empty.
func (a *Aggregator) FilterAcrossKinds(c Collection, conds ...Condition) Collection {
	if len(conds) == 0 {
		return c
	}
	if c.kind != "" && !a.registry.Participates(c.kind) {
		return c
	}
	c = c.clone()
	if c.kind == "" && len(a.registry.Kinds()) == 0 {
		c.empty = true
		return c
	}
	c.filters = append(c.filters, append([]Condition(nil), conds...))
	return c
}

// ReviewOverdue keeps items whose next review date falls before the month
// containing now, most recently due first.
func (a *Aggregator) ReviewOverdue(c Collection, now time.Time) Collection {
	c = a.FilterAcrossKinds(c,
		NotNull(models.FieldNextReviewDate),
		Before(models.FieldNextReviewDate, FirstOfMonth(now)),
	)
	return a.Annotate(c).OrderBy(models.FieldNextReviewDate, true).OrderBy("path", false)
}

// ForReviewThisMonth keeps items due in the month containing now, earliest
// first.
func (a *Aggregator) ForReviewThisMonth(c Collection, now time.Time) Collection {
	c = a.FilterAcrossKinds(c, InMonth(models.FieldNextReviewDate, now)...)
	return a.Annotate(c).OrderBy(models.FieldNextReviewDate, false).OrderBy("path", false)
}

// Fetch runs c. When PostgreSQL cannot resolve a review column or kind
// table, the query is retried once without review annotations and filters.
func (a *Aggregator) Fetch(ctx context.Context, c Collection) ([]models.ReviewRow, error) {
	rows, err := a.fetch(ctx, c)
	if err != nil && store.IsFieldResolution(err) {
		slog.Warn("review fields unavailable, using unannotated collection", "error", err)
		metrics.AggregatorFallbacks.Inc()
		return a.fetch(ctx, c.withoutReview())
	}
	return rows, err
}

// Count returns the number of items in c, with the same fallback as Fetch.
func (a *Aggregator) Count(ctx context.Context, c Collection) (int, error) {
	n, err := a.count(ctx, c)
	if err != nil && store.IsFieldResolution(err) {
		slog.Warn("review fields unavailable, counting unannotated collection", "error", err)
		metrics.AggregatorFallbacks.Inc()
		return a.count(ctx, c.withoutReview())
	}
	return n, err
}

func (a *Aggregator) fetch(ctx context.Context, c Collection) ([]models.ReviewRow, error) {
	if c.IsEmpty() {
		return nil, nil
	}
	q, err := buildQuery(c, a.registry.Kinds(), false)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("query review collection: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewRow
	for rows.Next() {
		var r models.ReviewRow
		dest := []any{
			&r.ID, &r.Path, &r.Depth, &r.Title, &r.Slug, &r.Kind, &r.Live,
			&r.CreatedAt, &r.UpdatedAt,
		}
		var last, next sql.NullTime
		if q.annotated {
			dest = append(dest, &last, &next)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		if q.annotated {
			r.Annotated = true
			r.LastReviewDate = toDate(last)
			r.NextReviewDate = toDate(next)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review collection: %w", err)
	}
	return out, nil
}

func (a *Aggregator) count(ctx context.Context, c Collection) (int, error) {
	if c.IsEmpty() {
		return 0, nil
	}
	q, err := buildQuery(c, a.registry.Kinds(), true)
	if err != nil {
		return 0, err
	}
	var n int
	if err := a.db.QueryRowContext(ctx, q.sql, q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count review collection: %w", err)
	}
	return n, nil
}

func toDate(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	d := time.Date(t.Time.Year(), t.Time.Month(), t.Time.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// query is a built SQL statement.
type query struct {
	sql       string
	args      []any
	annotated bool
}

// queryBuilder accumulates placeholders and arguments.
type queryBuilder struct {
	args []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// buildQuery renders c as one SQL statement. The kinds joined are the
// collection's own kind when it participates, or every participating kind
// for the base collection. Each join is on the kind table's primary key, so
// a page matches at most one row per kind and never repeats.
func buildQuery(c Collection, participating []models.KindDescriptor, count bool) (query, error) {
	var (
		b      queryBuilder
		joined []models.KindDescriptor
		single bool
		where  []string
	)

	if c.unjoined {
		participating = nil
	}
	if c.kind != "" {
		where = append(where, "p.kind = "+b.arg(c.kind))
		for _, k := range participating {
			if k.Name == c.kind {
				joined = []models.KindDescriptor{k}
				single = true
			}
		}
	} else {
		joined = participating
	}

	alias := func(i int) string { return "k" + strconv.Itoa(i) }

	reviewExpr := func(field string) string {
		switch {
		case len(joined) == 0:
			return ""
		case single:
			return "k0." + field
		}
		parts := make([]string, len(joined))
		for i := range joined {
			parts[i] = alias(i) + "." + field
		}
		return "COALESCE(" + strings.Join(parts, ", ") + ")"
	}

	if c.liveOnly {
		where = append(where, "p.live")
	}
	if c.rootPath != "" {
		where = append(where, "p.path LIKE "+b.arg(c.rootPath)+" || '%'")
	}
	if c.restricted {
		ids := make([]string, len(c.pageIDs))
		for i, id := range c.pageIDs {
			ids[i] = id.String()
		}
		where = append(where, "p.id = ANY("+b.arg(ids)+"::text[]::uuid[])")
	}
	if c.empty {
		where = append(where, "FALSE")
	}

	for _, group := range c.filters {
		if len(joined) == 0 {
			where = append(where, "FALSE")
			continue
		}
		if single {
			preds, err := conditionSQL(&b, "k0", group)
			if err != nil {
				return query{}, err
			}
			where = append(where, "("+strings.Join(preds, " AND ")+")")
			continue
		}
		branches := make([]string, len(joined))
		for i := range joined {
			preds, err := conditionSQL(&b, alias(i), group)
			if err != nil {
				return query{}, err
			}
			preds = append([]string{alias(i) + ".page_id IS NOT NULL"}, preds...)
			branches[i] = "(" + strings.Join(preds, " AND ") + ")"
		}
		where = append(where, "("+strings.Join(branches, " OR ")+")")
	}

	var sb strings.Builder
	annotated := c.annotated && len(joined) > 0
	if count {
		sb.WriteString("SELECT COUNT(*)")
	} else {
		sb.WriteString("SELECT p.id, p.path, p.depth, p.title, p.slug, p.kind, p.live, p.created_at, p.updated_at")
		if annotated {
			sb.WriteString(", " + reviewExpr(models.FieldLastReviewDate) + " AS last_review_date")
			sb.WriteString(", " + reviewExpr(models.FieldNextReviewDate) + " AS next_review_date")
		}
	}
	sb.WriteString(" FROM pages p")
	for i, k := range joined {
		join := " LEFT JOIN "
		if single {
			join = " JOIN "
		}
		sb.WriteString(join + pgx.Identifier{k.Table}.Sanitize() + " " + alias(i) +
			" ON " + alias(i) + ".page_id = p.id")
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	if !count {
		var order []string
		byPath := false
		for _, o := range c.orders {
			var expr string
			switch {
			case isReviewDate(o.Field):
				expr = reviewExpr(o.Field)
				if expr == "" {
					continue
				}
			case pageOrderColumns[o.Field]:
				expr = "p." + o.Field
				byPath = byPath || o.Field == "path"
			default:
				return query{}, fmt.Errorf("order review collection: unknown field %q", o.Field)
			}
			if o.Desc {
				expr += " DESC"
			}
			order = append(order, expr+" NULLS LAST")
		}
		if !byPath {
			order = append(order, "p.path")
		}
		sb.WriteString(" ORDER BY " + strings.Join(order, ", "))
		if c.limit > 0 {
			sb.WriteString(" LIMIT " + b.arg(c.limit))
		}
	}

	return query{sql: sb.String(), args: b.args, annotated: annotated && !count}, nil
}

// conditionSQL renders one filter group against the kind table at alias.
func conditionSQL(b *queryBuilder, alias string, conds []Condition) ([]string, error) {
	preds := make([]string, 0, len(conds))
	for _, c := range conds {
		if !isReviewDate(c.Field) {
			return nil, fmt.Errorf("filter review collection: unknown field %q", c.Field)
		}
		col := alias + "." + c.Field
		switch c.Op {
		case OpNotNull:
			preds = append(preds, col+" IS NOT NULL")
		case OpBefore:
			preds = append(preds, col+" < "+b.arg(c.Value.Format(time.DateOnly))+"::date")
		case OpOnOrAfter:
			preds = append(preds, col+" >= "+b.arg(c.Value.Format(time.DateOnly))+"::date")
		case OpOnOrBefore:
			preds = append(preds, col+" <= "+b.arg(c.Value.Format(time.DateOnly))+"::date")
		default:
			return nil, fmt.Errorf("filter review collection: unknown operator %d", c.Op)
		}
	}
	return preds, nil
}
