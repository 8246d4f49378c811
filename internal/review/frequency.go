// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package review

import (
	"context"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// RuleSource reads a site's configured frequencies keyed by kind.
// store.RuleStore implements it.
type RuleSource interface {
	Snapshot(ctx context.Context, siteID uuid.UUID) (map[string]models.ReviewFrequency, error)
}

// RuleSnapshot is a read-only view of one site's rules, loaded once per
// request or batch. It is never cached across requests so rule changes
// are seen immediately.
type RuleSnapshot struct {
	SiteID uuid.UUID
	rules  map[string]models.ReviewFrequency
}

// NewRuleSnapshot wraps rules for siteID. A nil map means no rules.
func NewRuleSnapshot(siteID uuid.UUID, rules map[string]models.ReviewFrequency) RuleSnapshot {
	return RuleSnapshot{SiteID: siteID, rules: rules}
}

// LoadRules fetches the snapshot for siteID. The zero site (an item
// outside every site tree) has no rules.
func LoadRules(ctx context.Context, src RuleSource, siteID uuid.UUID) (RuleSnapshot, error) {
	if siteID == uuid.Nil {
		return RuleSnapshot{}, nil
	}
	rules, err := src.Snapshot(ctx, siteID)
	if err != nil {
		return RuleSnapshot{}, err
	}
	return NewRuleSnapshot(siteID, rules), nil
}

// Frequency returns the rule configured for kind.
func (s RuleSnapshot) Frequency(kind string) (models.ReviewFrequency, bool) {
	f, ok := s.rules[kind]
	return f, ok
}

// EffectiveFrequency resolves an item's review interval in months. The
// item's own override wins, then the site rule for its kind, then the
// global default.
func EffectiveFrequency(item models.Reviewable, rules RuleSnapshot) int {
	if custom := item.ReviewFields().CustomReviewFrequency; custom != nil && *custom > 0 {
		return *custom
	}
	if f, ok := rules.Frequency(item.PageRef().Kind); ok {
		return int(f)
	}
	return int(models.DefaultReviewFrequency)
}
