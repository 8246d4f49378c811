// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers of the reviewd JSON API.
// Handlers are grouped on the API struct and receive their dependencies
// through it.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"reviewd/internal/jobs"
	"reviewd/internal/models"
	"reviewd/internal/review"
	"reviewd/internal/store"
)

// RuleSetQueue defers rule set saves to the background worker.
type RuleSetQueue interface {
	Enqueue(ctx context.Context, siteID uuid.UUID, changes map[string]models.ReviewFrequency) (*jobs.RuleSetJob, error)
}

// API groups the review HTTP handlers and their dependencies.
type API struct {
	scheduler  *review.Scheduler
	agg        *review.Aggregator
	rules      *review.RuleSetService
	registry   *review.Registry
	sites      *store.SiteStore
	visibility review.Visibility
	queue      RuleSetQueue
	now        func() time.Time
}

// NewAPI creates the handler group. queue may be nil, in which case rule
// set saves run inside the request. A nil visibility shows every page.
func NewAPI(scheduler *review.Scheduler, agg *review.Aggregator, rules *review.RuleSetService, registry *review.Registry, sites *store.SiteStore, visibility review.Visibility, queue RuleSetQueue) *API {
	if visibility == nil {
		visibility = review.AllVisible{}
	}
	return &API{
		scheduler:  scheduler,
		agg:        agg,
		rules:      rules,
		registry:   registry,
		sites:      sites,
		visibility: visibility,
		queue:      queue,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps domain errors to HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, review.ErrNotReviewable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrDuplicateRule),
		errors.Is(err, store.ErrDuplicateSite),
		errors.Is(err, store.ErrPageInUse):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidFrequency),
		errors.Is(err, models.ErrInvalidReviewFields),
		errors.Is(err, review.ErrUnknownKind),
		errors.Is(err, review.ErrDerivedField):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// uuidParam parses a UUID path parameter, answering 400 when malformed.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "Invalid "+name+".")
		return uuid.Nil, false
	}
	return id, true
}

// scope builds the base collection of a listing: the caller's visible
// pages, optionally narrowed to one site's tree by the "site" parameter.
func (a *API) scope(w http.ResponseWriter, r *http.Request) (review.Collection, bool) {
	c := review.All()
	if raw := r.URL.Query().Get("site"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "Invalid site.")
			return c, false
		}
		site, err := a.sites.FindByID(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return c, false
		}
		if site == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "site not found"})
			return c, false
		}
		c = c.InTree(site.RootPath)
	}

	c, err := a.visibility.Restrict(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return c, false
	}
	return c, true
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

// rowJSON is one entry of a dashboard panel or report.
type rowJSON struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	Path           string    `json:"path"`
	Kind           string    `json:"kind"`
	Live           bool      `json:"live"`
	LastReviewDate *string   `json:"last_review_date"`
	NextReviewDate *string   `json:"next_review_date"`
}

func toRows(rows []models.ReviewRow) []rowJSON {
	out := make([]rowJSON, len(rows))
	for i, r := range rows {
		out[i] = rowJSON{
			ID:             r.ID,
			Title:          r.Title,
			Slug:           r.Slug,
			Path:           r.Path,
			Kind:           r.Kind,
			Live:           r.Live,
			LastReviewDate: formatDate(r.LastReviewDate),
			NextReviewDate: formatDate(r.NextReviewDate),
		}
	}
	return out
}

type reviewFieldsJSON struct {
	LastReviewDate           *string `json:"last_review_date"`
	CurrentVersionRef        string  `json:"current_version_ref"`
	CurrentVersionCompiledBy string  `json:"current_version_compiled_by"`
	CustomReviewFrequency    *int    `json:"custom_review_frequency"`
	NextReviewDate           *string `json:"next_review_date"`
}

func toReviewFields(f models.ReviewFields) reviewFieldsJSON {
	return reviewFieldsJSON{
		LastReviewDate:           formatDate(f.LastReviewDate),
		CurrentVersionRef:        f.CurrentVersionRef,
		CurrentVersionCompiledBy: f.CurrentVersionCompiledBy,
		CustomReviewFrequency:    f.CustomReviewFrequency,
		NextReviewDate:           formatDate(f.NextReviewDate),
	}
}

// itemJSON is a reviewable page with its review metadata.
type itemJSON struct {
	ID     uuid.UUID        `json:"id"`
	SiteID uuid.UUID        `json:"site_id"`
	Title  string           `json:"title"`
	Slug   string           `json:"slug"`
	Path   string           `json:"path"`
	Kind   string           `json:"kind"`
	Live   bool             `json:"live"`
	Review reviewFieldsJSON `json:"review"`
}

func toItem(p *models.ReviewablePage) itemJSON {
	return itemJSON{
		ID:     p.ID,
		SiteID: p.SiteID,
		Title:  p.Title,
		Slug:   p.Slug,
		Path:   p.Path,
		Kind:   p.Kind,
		Live:   p.Live,
		Review: toReviewFields(p.Review),
	}
}
