// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// RuleStore manages the per-site frequency settings aggregate and its rules.
type RuleStore struct {
	db *sql.DB
}

// NewRuleStore returns a new RuleStore backed by the given database.
func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

// Settings returns the site's settings aggregate with its ordered rules,
// creating an empty aggregate on first access.
func (s *RuleStore) Settings(ctx context.Context, tx DBTX, siteID uuid.UUID) (*models.FrequencySettings, error) {
	settings := &models.FrequencySettings{SiteID: siteID}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO review_frequency_settings (site_id)
		VALUES ($1)
		ON CONFLICT (site_id) DO UPDATE SET site_id = EXCLUDED.site_id
		RETURNING id, updated_at
	`, siteID).Scan(&settings.ID, &settings.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load frequency settings: %w", err)
	}

	rules, err := s.ListRules(ctx, tx, settings.ID)
	if err != nil {
		return nil, err
	}
	settings.Rules = rules
	return settings, nil
}

// ListRules returns the aggregate's rules in display order.
func (s *RuleStore) ListRules(ctx context.Context, tx DBTX, settingsID uuid.UUID) ([]models.FrequencyRule, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, settings_id, kind, frequency_months, sort_order
		FROM review_frequency_rules
		WHERE settings_id = $1
		ORDER BY sort_order, kind
	`, settingsID)
	if err != nil {
		return nil, fmt.Errorf("list frequency rules: %w", err)
	}
	defer rows.Close()

	var rules []models.FrequencyRule
	for rows.Next() {
		var r models.FrequencyRule
		if err := rows.Scan(&r.ID, &r.SettingsID, &r.Kind, &r.Frequency, &r.SortOrder); err != nil {
			return nil, fmt.Errorf("scan frequency rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Snapshot reads the site's rules as a kind → frequency map. A site with no
// settings yet yields an empty map.
func (s *RuleStore) Snapshot(ctx context.Context, siteID uuid.UUID) (map[string]models.ReviewFrequency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.kind, r.frequency_months
		FROM review_frequency_rules r
		JOIN review_frequency_settings fs ON fs.id = r.settings_id
		WHERE fs.site_id = $1
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("snapshot frequency rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[string]models.ReviewFrequency)
	for rows.Next() {
		var kind string
		var f models.ReviewFrequency
		if err := rows.Scan(&kind, &f); err != nil {
			return nil, fmt.Errorf("scan frequency rule: %w", err)
		}
		rules[kind] = f
	}
	return rules, rows.Err()
}

// CreateRule adds a rule to the aggregate.
func (s *RuleStore) CreateRule(ctx context.Context, tx DBTX, settingsID uuid.UUID, kind string, f models.ReviewFrequency, sortOrder int) (*models.FrequencyRule, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("create frequency rule: %w: %d", models.ErrInvalidFrequency, f)
	}
	r := &models.FrequencyRule{SettingsID: settingsID, Kind: kind, Frequency: f, SortOrder: sortOrder}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO review_frequency_rules (settings_id, kind, frequency_months, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, settingsID, kind, int(f), sortOrder).Scan(&r.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create frequency rule %s: %w", kind, ErrDuplicateRule)
	}
	if err != nil {
		return nil, fmt.Errorf("create frequency rule: %w", err)
	}
	return r, nil
}

// UpdateFrequency changes a rule's frequency.
func (s *RuleStore) UpdateFrequency(ctx context.Context, tx DBTX, ruleID uuid.UUID, f models.ReviewFrequency) error {
	if !f.Valid() {
		return fmt.Errorf("update frequency rule: %w: %d", models.ErrInvalidFrequency, f)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE review_frequency_rules SET frequency_months = $1 WHERE id = $2
	`, int(f), ruleID)
	if err != nil {
		return fmt.Errorf("update frequency rule: %w", err)
	}
	return nil
}

// DeleteRule removes a rule.
func (s *RuleStore) DeleteRule(ctx context.Context, tx DBTX, ruleID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM review_frequency_rules WHERE id = $1`, ruleID); err != nil {
		return fmt.Errorf("delete frequency rule: %w", err)
	}
	return nil
}

// Touch marks the aggregate as saved.
func (s *RuleStore) Touch(ctx context.Context, tx DBTX, settingsID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE review_frequency_settings SET updated_at = NOW() WHERE id = $1
	`, settingsID)
	if err != nil {
		return fmt.Errorf("touch frequency settings: %w", err)
	}
	return nil
}
