// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reviewd/internal/metrics"
	"reviewd/internal/models"
	"reviewd/internal/store"
)

var (
	// ErrNotReviewable is returned for pages whose kind does not participate.
	ErrNotReviewable = errors.New("page kind does not participate in review")

	// ErrDerivedField is returned when an update names next_review_date.
	ErrDerivedField = errors.New("next_review_date is derived and cannot be written")
)

// AddMonths adds n calendar months to t's date. When the target month is
// shorter the result is clamped to its last day, so Jan 31 + 1 month is the
// end of February. This matches PostgreSQL date + interval arithmetic.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// NextReviewDate returns last + months, or nil when the item was never
// reviewed.
func NextReviewDate(last *time.Time, months int) *time.Time {
	if last == nil {
		return nil
	}
	next := AddMonths(*last, months)
	return &next
}

// Recompute derives the item's next review date from its last review date
// and effective frequency.
func Recompute(item models.Reviewable, rules RuleSnapshot) {
	f := item.ReviewFields()
	f.NextReviewDate = NextReviewDate(f.LastReviewDate, EffectiveFrequency(item, rules))
	item.SetReviewFields(f)
}

// ReviewUpdate is a save of an item's review fields. Fields names the
// columns being written; an empty set is a full save of Values.
type ReviewUpdate struct {
	Fields []string
	Values models.ReviewFields
}

// columns validates the field set and returns the columns to persist,
// including the derived date when recomputation applies.
func (u ReviewUpdate) columns() ([]string, error) {
	if len(u.Fields) == 0 {
		return nil, nil
	}
	cols := make([]string, 0, len(u.Fields)+1)
	for _, f := range u.Fields {
		switch f {
		case models.FieldNextReviewDate:
			return nil, ErrDerivedField
		case models.FieldLastReviewDate, models.FieldCurrentVersionRef,
			models.FieldCurrentVersionCompiledBy, models.FieldCustomReviewFrequency:
			cols = append(cols, f)
		default:
			return nil, fmt.Errorf("%w: unknown field %q", models.ErrInvalidReviewFields, f)
		}
	}
	if u.needsRecompute() {
		cols = append(cols, models.FieldNextReviewDate)
	}
	return cols, nil
}

// needsRecompute reports whether the save may change the derived date. Only
// partial saves that touch neither of its inputs skip recomputation.
func (u ReviewUpdate) needsRecompute() bool {
	if len(u.Fields) == 0 {
		return true
	}
	for _, f := range u.Fields {
		if f == models.FieldLastReviewDate || f == models.FieldCustomReviewFrequency {
			return true
		}
	}
	return false
}

// apply copies the updated values onto current.
func (u ReviewUpdate) apply(current models.ReviewFields) models.ReviewFields {
	if len(u.Fields) == 0 {
		out := u.Values
		out.NextReviewDate = current.NextReviewDate
		return out
	}
	for _, f := range u.Fields {
		switch f {
		case models.FieldLastReviewDate:
			current.LastReviewDate = u.Values.LastReviewDate
		case models.FieldCurrentVersionRef:
			current.CurrentVersionRef = u.Values.CurrentVersionRef
		case models.FieldCurrentVersionCompiledBy:
			current.CurrentVersionCompiledBy = u.Values.CurrentVersionCompiledBy
		case models.FieldCustomReviewFrequency:
			current.CustomReviewFrequency = u.Values.CustomReviewFrequency
		}
	}
	return current
}

// Scheduler is the write path for review metadata. Every save of an item
// goes through UpdateReview so the derived date stays consistent.
type Scheduler struct {
	db        *sql.DB
	registry  *Registry
	sites     *store.SiteStore
	pages     *store.PageStore
	reviews   *store.ReviewStore
	rules     *store.RuleStore
	revisions *store.RevisionStore
}

// NewScheduler creates a Scheduler backed by db.
func NewScheduler(db *sql.DB, registry *Registry, sites *store.SiteStore) *Scheduler {
	return &Scheduler{
		db:        db,
		registry:  registry,
		sites:     sites,
		pages:     store.NewPageStore(db),
		reviews:   store.NewReviewStore(db),
		rules:     store.NewRuleStore(db),
		revisions: store.NewRevisionStore(db),
	}
}

// Load returns a reviewable page with its site resolved.
func (s *Scheduler) Load(ctx context.Context, pageID uuid.UUID) (*models.ReviewablePage, error) {
	kind, err := s.kindOf(ctx, pageID)
	if err != nil {
		return nil, err
	}
	item, err := s.reviews.Get(ctx, kind, pageID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("review row for page %s: %w", pageID, store.ErrNotFound)
	}
	if err := s.resolveSite(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Scheduler) kindOf(ctx context.Context, pageID uuid.UUID) (models.KindDescriptor, error) {
	page, err := s.pages.FindByID(ctx, pageID)
	if err != nil {
		return models.KindDescriptor{}, err
	}
	if page == nil {
		return models.KindDescriptor{}, fmt.Errorf("page %s: %w", pageID, store.ErrNotFound)
	}
	kind, ok := s.registry.Lookup(page.Kind)
	if !ok {
		return models.KindDescriptor{}, fmt.Errorf("page %s of kind %q: %w", pageID, page.Kind, ErrNotReviewable)
	}
	return kind, nil
}

func (s *Scheduler) resolveSite(ctx context.Context, item *models.ReviewablePage) error {
	site, err := s.sites.ForPath(ctx, item.Path)
	if err != nil {
		return err
	}
	if site != nil {
		item.SiteID = site.ID
	}
	return nil
}

// UpdateReview saves review fields of one item in a single transaction,
// recomputing next_review_date unless the update provably leaves its
// inputs untouched.
func (s *Scheduler) UpdateReview(ctx context.Context, pageID uuid.UUID, u ReviewUpdate) (*models.ReviewablePage, error) {
	cols, err := u.columns()
	if err != nil {
		return nil, err
	}
	kind, err := s.kindOf(ctx, pageID)
	if err != nil {
		return nil, err
	}

	var item *models.ReviewablePage
	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		item, err = s.reviews.GetForUpdate(ctx, tx, kind, pageID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("review row for page %s: %w", pageID, store.ErrNotFound)
		}
		if err := s.resolveSite(ctx, item); err != nil {
			return err
		}

		item.SetReviewFields(u.apply(item.ReviewFields()))
		if u.needsRecompute() {
			rules, err := LoadRules(ctx, s.rules, item.SiteID)
			if err != nil {
				return err
			}
			Recompute(item, rules)
		}
		return s.reviews.Update(ctx, tx, kind, pageID, item.Review, cols)
	})
	if err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	if u.needsRecompute() {
		metrics.ItemsRecomputed.WithLabelValues(kind.Name, metrics.TriggerSave).Inc()
	}
	slog.Debug("review updated", "page_id", pageID, "kind", kind.Name, "recomputed", u.needsRecompute())
	return item, nil
}

// CreatePage inserts a page below parentID. Pages of a kind with a review
// table get a review row with the derived date already computed, even
// while the kind is not registered, so enabling it later finds the row.
func (s *Scheduler) CreatePage(ctx context.Context, parentID uuid.UUID, p models.Page, f models.ReviewFields) (*models.Page, error) {
	kind, reviewable := s.registry.Lookup(p.Kind)
	if !reviewable {
		kind, reviewable = models.LookupBuiltinKind(p.Kind)
	}

	var created *models.Page
	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		created, err = s.pages.InsertChild(ctx, tx, parentID, &p)
		if err != nil {
			return err
		}
		if !reviewable {
			return nil
		}

		item := &models.ReviewablePage{Page: *created, Review: f}
		if err := s.resolveSite(ctx, item); err != nil {
			return err
		}
		rules, err := LoadRules(ctx, s.rules, item.SiteID)
		if err != nil {
			return err
		}
		Recompute(item, rules)
		return s.reviews.Insert(ctx, tx, kind, created.ID, item.Review)
	})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return created, nil
}

// PagesOfKind lists every page of kind in tree order.
func (s *Scheduler) PagesOfKind(ctx context.Context, kind string) ([]models.Page, error) {
	return s.pages.ListByKind(ctx, kind)
}

// SetLive publishes or unpublishes a page. Offline pages keep their
// schedule but drop out of the dashboard panels.
func (s *Scheduler) SetLive(ctx context.Context, pageID uuid.UUID, live bool) (*models.Page, error) {
	page, err := s.pages.FindByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page %s: %w", pageID, store.ErrNotFound)
	}
	if err := s.pages.SetLive(ctx, pageID, live); err != nil {
		return nil, err
	}
	page.Live = live
	slog.Info("page live flag set", "page_id", pageID, "live", live)
	return page, nil
}

// DeletePage removes a page and its subtree. A page that roots a site
// cannot be deleted while the site exists.
func (s *Scheduler) DeletePage(ctx context.Context, pageID uuid.UUID) error {
	page, err := s.pages.FindByID(ctx, pageID)
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("page %s: %w", pageID, store.ErrNotFound)
	}
	if err := s.pages.Delete(ctx, pageID); err != nil {
		return err
	}
	slog.Info("page deleted", "page_id", pageID, "path", page.Path)
	return nil
}

// Revisions lists a page's snapshots, newest first.
func (s *Scheduler) Revisions(ctx context.Context, pageID uuid.UUID) ([]*models.PageRevision, error) {
	page, err := s.pages.FindByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page %s: %w", pageID, store.ErrNotFound)
	}
	return s.revisions.ListByPageID(ctx, pageID)
}

// SnapshotRevision records the page's current content and review fields.
func (s *Scheduler) SnapshotRevision(ctx context.Context, pageID uuid.UUID) (*models.PageRevision, error) {
	page, err := s.pages.FindByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page %s: %w", pageID, store.ErrNotFound)
	}

	rev := &models.PageRevision{PageID: page.ID, Title: page.Title, Slug: page.Slug}
	if kind, ok := s.registry.Lookup(page.Kind); ok {
		item, err := s.reviews.Get(ctx, kind, pageID)
		if err != nil {
			return nil, err
		}
		if item != nil {
			rev.Review = item.Review
		}
	}
	return s.revisions.Create(ctx, rev)
}

// RestoreRevision applies a snapshot's content to its page. The live
// scheduling fields are kept: restoring history never moves the next
// review date backwards.
func (s *Scheduler) RestoreRevision(ctx context.Context, revisionID uuid.UUID) (*models.Page, error) {
	rev, err := s.revisions.FindByID(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev == nil {
		return nil, fmt.Errorf("revision %s: %w", revisionID, store.ErrNotFound)
	}
	page, err := s.pages.FindByID(ctx, rev.PageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("page %s: %w", rev.PageID, store.ErrNotFound)
	}

	page.Title = rev.Title
	page.Slug = rev.Slug
	kind, reviewable := s.registry.Lookup(page.Kind)

	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.pages.UpdateContent(ctx, tx, page); err != nil {
			return err
		}
		if !reviewable {
			return nil
		}
		item, err := s.reviews.GetForUpdate(ctx, tx, kind, page.ID)
		if err != nil || item == nil {
			return err
		}
		f := item.Review
		f.CurrentVersionRef = rev.Review.CurrentVersionRef
		f.CurrentVersionCompiledBy = rev.Review.CurrentVersionCompiledBy
		return s.reviews.Update(ctx, tx, kind, page.ID, f, []string{
			models.FieldCurrentVersionRef,
			models.FieldCurrentVersionCompiledBy,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("restore revision: %w", err)
	}
	return page, nil
}
