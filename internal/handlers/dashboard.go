// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"
	"time"

	"reviewd/internal/models"
	"reviewd/internal/review"
)

type listJSON struct {
	Items []rowJSON `json:"items"`
	Count int       `json:"count"`
}

// Overdue lists live items whose next review date has passed, most
// recently due first.
func (a *API) Overdue(w http.ResponseWriter, r *http.Request) {
	a.panel(w, r, a.agg.ReviewOverdue)
}

// ThisMonth lists live items due for review in the current calendar month.
func (a *API) ThisMonth(w http.ResponseWriter, r *http.Request) {
	a.panel(w, r, a.agg.ForReviewThisMonth)
}

func (a *API) panel(w http.ResponseWriter, r *http.Request, narrow func(review.Collection, time.Time) review.Collection) {
	limit, msg := parseLimit(r.URL.Query().Get("limit"))
	if msg != "" {
		badRequest(w, msg)
		return
	}
	base, ok := a.scope(w, r)
	if !ok {
		return
	}

	c := narrow(base.Live(), a.now())
	total, err := a.agg.Count(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.agg.Fetch(r.Context(), c.Limit(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listJSON{Items: toRows(rows), Count: total})
}

// PeriodicReport lists reviewed items filtered by kind and date ranges.
// Dates are YYYY-MM-DD; both ends of each range are inclusive.
func (a *API) PeriodicReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	last, msg := parseDateRange(q, "last_review_from", "last_review_to")
	if msg != "" {
		badRequest(w, msg)
		return
	}
	next, msg := parseDateRange(q, "next_review_from", "next_review_to")
	if msg != "" {
		badRequest(w, msg)
		return
	}
	base, ok := a.scope(w, r)
	if !ok {
		return
	}

	c, err := a.agg.PeriodicReport(base, review.ReportFilter{
		Kind:       q.Get("kind"),
		LastReview: last,
		NextReview: next,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.agg.Fetch(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listJSON{Items: toRows(rows), Count: len(rows)})
}

type frequencyJSON struct {
	Months int    `json:"months"`
	Label  string `json:"label"`
}

// Kinds lists the participating kinds and the selectable frequencies.
func (a *API) Kinds(w http.ResponseWriter, r *http.Request) {
	freqs := make([]frequencyJSON, len(models.ReviewFrequencies))
	for i, f := range models.ReviewFrequencies {
		freqs[i] = frequencyJSON{Months: int(f), Label: f.Label()}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kinds":             a.registry.Kinds(),
		"frequencies":       freqs,
		"default_frequency": int(models.DefaultReviewFrequency),
	})
}
