// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidFrequency is returned when a rule frequency is not one of the
// allowed ReviewFrequency values.
var ErrInvalidFrequency = errors.New("invalid review frequency")

// ReviewFrequency is a review interval in months.
type ReviewFrequency int

const (
	OneMonth       ReviewFrequency = 1
	TwoMonths      ReviewFrequency = 2
	ThreeMonths    ReviewFrequency = 3
	SixMonths      ReviewFrequency = 6
	TwelveMonths   ReviewFrequency = 12
	EighteenMonths ReviewFrequency = 18
	TwoYears       ReviewFrequency = 24
	ThreeYears     ReviewFrequency = 36
	FourYears      ReviewFrequency = 48
)

// DefaultReviewFrequency applies when neither the item nor the site
// configures one.
const DefaultReviewFrequency = TwelveMonths

// ReviewFrequencies lists the allowed rule frequencies in ascending order.
var ReviewFrequencies = []ReviewFrequency{
	OneMonth, TwoMonths, ThreeMonths, SixMonths, TwelveMonths,
	EighteenMonths, TwoYears, ThreeYears, FourYears,
}

var frequencyLabels = map[ReviewFrequency]string{
	OneMonth:       "1 month",
	TwoMonths:      "2 months",
	ThreeMonths:    "3 months",
	SixMonths:      "6 months",
	TwelveMonths:   "12 months",
	EighteenMonths: "18 months",
	TwoYears:       "2 years",
	ThreeYears:     "3 years",
	FourYears:      "4 years",
}

// Valid reports whether f is one of the allowed frequencies.
func (f ReviewFrequency) Valid() bool {
	_, ok := frequencyLabels[f]
	return ok
}

// Label returns the human-friendly name of f.
func (f ReviewFrequency) Label() string {
	if l, ok := frequencyLabels[f]; ok {
		return l
	}
	return fmt.Sprintf("%d months", int(f))
}

// ParseReviewFrequency validates a month count against the allowed values.
func ParseReviewFrequency(months int) (ReviewFrequency, error) {
	f := ReviewFrequency(months)
	if !f.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidFrequency, months)
	}
	return f, nil
}

// FrequencyRule sets the review frequency for one kind within one site.
// Rules are children of the site's FrequencySettings and are unique per kind.
type FrequencyRule struct {
	ID         uuid.UUID       `json:"id"`
	SettingsID uuid.UUID       `json:"settings_id"`
	Kind       string          `json:"kind"`
	Frequency  ReviewFrequency `json:"frequency_months"`
	SortOrder  int             `json:"sort_order"`
}

// FrequencySettings is the per-site aggregate owning the ordered rules.
type FrequencySettings struct {
	ID        uuid.UUID       `json:"id"`
	SiteID    uuid.UUID       `json:"site_id"`
	Rules     []FrequencyRule `json:"rules"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RuleFor returns the rule configured for kind, if any.
func (s *FrequencySettings) RuleFor(kind string) (FrequencyRule, bool) {
	for _, r := range s.Rules {
		if r.Kind == kind {
			return r, true
		}
	}
	return FrequencyRule{}, false
}
