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
	"sort"
	"time"

	"github.com/google/uuid"

	"reviewd/internal/metrics"
	"reviewd/internal/models"
	"reviewd/internal/slug"
	"reviewd/internal/store"
)

// SaveResult summarizes a rule-set save.
type SaveResult struct {
	SiteID     uuid.UUID        `json:"site_id"`
	Created    []string         `json:"created"`
	Deleted    []string         `json:"deleted"`
	Updated    []string         `json:"updated"`
	Recomputed map[string]int64 `json:"recomputed"`
}

// RuleSetService owns each site's frequency rules and the cascade that
// brings stored next review dates in line after the rules change.
type RuleSetService struct {
	db       *sql.DB
	registry *Registry
	sites    *store.SiteStore
	rules    *store.RuleStore
	reviews  *store.ReviewStore
}

// NewRuleSetService creates a RuleSetService backed by db.
func NewRuleSetService(db *sql.DB, registry *Registry, sites *store.SiteStore) *RuleSetService {
	return &RuleSetService{
		db:       db,
		registry: registry,
		sites:    sites,
		rules:    store.NewRuleStore(db),
		reviews:  store.NewReviewStore(db),
	}
}

// Load returns the site's settings with their rules in display order.
func (s *RuleSetService) Load(ctx context.Context, siteID uuid.UUID) (*models.FrequencySettings, error) {
	if _, err := s.Site(ctx, siteID); err != nil {
		return nil, err
	}
	var settings *models.FrequencySettings
	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		settings, err = s.rules.Settings(ctx, tx, siteID)
		return err
	})
	return settings, err
}

// ValidateChanges checks requested frequencies before a save is queued.
func (s *RuleSetService) ValidateChanges(changes map[string]models.ReviewFrequency) error {
	for kind, f := range changes {
		if !s.registry.Participates(kind) {
			return fmt.Errorf("frequency rule %q: %w", kind, ErrUnknownKind)
		}
		if _, err := models.ParseReviewFrequency(int(f)); err != nil {
			return fmt.Errorf("frequency rule %q: %w", kind, err)
		}
	}
	return nil
}

// Save applies frequency changes, reconciles the rules with the registered
// kinds and recomputes the site's items. Changes and reconciliation commit
// together; the cascade then runs one transaction per kind. Calling Save
// with no changes only reconciles and recomputes, and repeating it is a
// no-op on the data.
func (s *RuleSetService) Save(ctx context.Context, siteID uuid.UUID, changes map[string]models.ReviewFrequency) (*SaveResult, error) {
	if err := s.ValidateChanges(changes); err != nil {
		return nil, err
	}
	site, err := s.Site(ctx, siteID)
	if err != nil {
		return nil, err
	}
	// Sites may have been added by another process since the cached list
	// was read.
	s.sites.Purge()

	result := &SaveResult{SiteID: siteID, Recomputed: make(map[string]int64)}
	var rules []models.FrequencyRule
	err = store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		settings, err := s.rules.Settings(ctx, tx, siteID)
		if err != nil {
			return err
		}

		kinds := make([]string, 0, len(changes))
		for kind := range changes {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			r, ok := settings.RuleFor(kind)
			if !ok || r.Frequency == changes[kind] {
				continue
			}
			if err := s.rules.UpdateFrequency(ctx, tx, r.ID, changes[kind]); err != nil {
				return err
			}
			result.Updated = append(result.Updated, kind)
		}

		plan := planReconcile(settings.Rules, s.registry.Kinds())
		for _, r := range plan.stale {
			if err := s.rules.DeleteRule(ctx, tx, r.ID); err != nil {
				return err
			}
			result.Deleted = append(result.Deleted, r.Kind)
		}
		for i, kind := range plan.missing {
			f, ok := changes[kind]
			if !ok {
				f = models.DefaultReviewFrequency
			}
			if _, err := s.rules.CreateRule(ctx, tx, settings.ID, kind, f, plan.nextSort+i); err != nil {
				return err
			}
			result.Created = append(result.Created, kind)
		}

		if err := s.rules.Touch(ctx, tx, settings.ID); err != nil {
			return err
		}
		rules, err = s.rules.ListRules(ctx, tx, settings.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save frequency rules: %w", err)
	}

	for _, r := range rules {
		n, err := s.cascade(ctx, site, r)
		if err != nil {
			return result, err
		}
		result.Recomputed[r.Kind] = n
	}

	slog.Info("frequency rules saved",
		"site_id", siteID,
		"created", len(result.Created),
		"deleted", len(result.Deleted),
		"updated", len(result.Updated),
	)
	return result, nil
}

// cascade recomputes every item of r's kind in the site tree that follows
// the site rule.
func (s *RuleSetService) cascade(ctx context.Context, site *models.Site, r models.FrequencyRule) (int64, error) {
	kind, ok := s.registry.Lookup(r.Kind)
	if !ok {
		return 0, nil
	}

	start := time.Now()
	var n int64
	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		n, err = s.reviews.BulkRecompute(ctx, tx, kind, site.RootPath, int(r.Frequency))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cascade %s for site %s: %w", r.Kind, site.ID, err)
	}

	metrics.CascadeDuration.WithLabelValues(kind.Name).Observe(time.Since(start).Seconds())
	metrics.ItemsRecomputed.WithLabelValues(kind.Name, metrics.TriggerCascade).Add(float64(n))
	return n, nil
}

// ReconcileAll saves every site's rule set with no changes, picking up
// kinds registered or removed since the last run.
func (s *RuleSetService) ReconcileAll(ctx context.Context) error {
	sites, err := s.sites.List(ctx)
	if err != nil {
		return fmt.Errorf("reconcile rule sets: %w", err)
	}

	var errs []error
	for _, site := range sites {
		if _, err := s.Save(ctx, site.ID, nil); err != nil {
			slog.Error("reconcile rule set", "site_id", site.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateSite adds a site with a new top-level root page and gives it a
// rule set for the registered kinds.
func (s *RuleSetService) CreateSite(ctx context.Context, hostname, name string, isDefault bool) (*models.Site, error) {
	pages := store.NewPageStore(s.db)

	var root *models.Page
	err := store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		root, err = pages.InsertRoot(ctx, tx, &models.Page{
			Title: name, Slug: slug.Generate(name), Kind: models.SimplePageKind, Live: true,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create site root: %w", err)
	}

	site, err := s.sites.Create(ctx, &models.Site{
		Hostname:   hostname,
		SiteName:   name,
		RootPageID: root.ID,
		IsDefault:  isDefault,
	})
	if err != nil {
		if derr := pages.Delete(ctx, root.ID); derr != nil {
			slog.Warn("remove orphan site root", "page_id", root.ID, "error", derr)
		}
		return nil, err
	}

	if _, err := s.Save(ctx, site.ID, nil); err != nil {
		return site, err
	}
	slog.Info("site created", "site_id", site.ID, "hostname", hostname, "root_path", site.RootPath)
	return site, nil
}

// DeleteSite removes a site and its rule set. With pages set the site's
// page tree is removed too; otherwise its pages fall back to the
// enclosing site, if any, on the next reconcile.
func (s *RuleSetService) DeleteSite(ctx context.Context, siteID uuid.UUID, pages bool) error {
	site, err := s.Site(ctx, siteID)
	if err != nil {
		return err
	}
	if err := s.sites.Delete(ctx, siteID); err != nil {
		return err
	}
	if pages {
		if err := store.NewPageStore(s.db).Delete(ctx, site.RootPageID); err != nil {
			return err
		}
	}
	slog.Info("site deleted", "site_id", siteID, "hostname", site.Hostname, "pages", pages)
	return nil
}

// Sites lists every site ordered by hostname.
func (s *RuleSetService) Sites(ctx context.Context) ([]models.Site, error) {
	return s.sites.List(ctx)
}

// Site returns the site owning the rule set, or store.ErrNotFound.
func (s *RuleSetService) Site(ctx context.Context, siteID uuid.UUID) (*models.Site, error) {
	site, err := s.sites.FindByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("site %s: %w", siteID, store.ErrNotFound)
	}
	return site, nil
}

// reconcilePlan is the difference between a site's rules and the
// registered kinds.
type reconcilePlan struct {
	stale    []models.FrequencyRule
	missing  []string
	nextSort int
}

// planReconcile lists rules whose kind is no longer registered and kinds
// that have no rule yet. New rules sort after every existing one.
func planReconcile(rules []models.FrequencyRule, kinds []models.KindDescriptor) reconcilePlan {
	registered := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		registered[k.Name] = true
	}

	var plan reconcilePlan
	have := make(map[string]bool, len(rules))
	for _, r := range rules {
		have[r.Kind] = true
		if r.SortOrder >= plan.nextSort {
			plan.nextSort = r.SortOrder + 1
		}
		if !registered[r.Kind] {
			plan.stale = append(plan.stale, r)
		}
	}
	for _, k := range kinds {
		if !have[k.Name] {
			plan.missing = append(plan.missing, k.Name)
		}
	}
	sort.Strings(plan.missing)
	return plan
}
