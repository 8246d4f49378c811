// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"reviewd/internal/models"
	"reviewd/internal/review"
)

// GetReview returns a page's review metadata.
func (a *API) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	item, err := a.scheduler.Load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(item))
}

// PatchReview writes the fields present in the body. The next review date
// is recomputed when the last review date or custom frequency changes.
func (a *API) PatchReview(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	u, msg := decodeReviewPatch(r.Body)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	a.saveReview(w, r, id, u)
}

// PutReview replaces all editable review fields.
func (a *API) PutReview(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	u, msg := decodeReviewSave(r.Body)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	a.saveReview(w, r, id, u)
}

func (a *API) saveReview(w http.ResponseWriter, r *http.Request, id uuid.UUID, u review.ReviewUpdate) {
	item, err := a.scheduler.UpdateReview(r.Context(), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(item))
}

// CreateRevision snapshots the page's current content and review fields.
func (a *API) CreateRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	rev, err := a.scheduler.SnapshotRevision(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRevision(rev))
}

// ListRevisions returns a page's snapshots, newest first.
func (a *API) ListRevisions(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	revs, err := a.scheduler.Revisions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]map[string]any, len(revs))
	for i, rev := range revs {
		items[i] = toRevision(rev)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func toRevision(rev *models.PageRevision) map[string]any {
	return map[string]any{
		"id":         rev.ID,
		"page_id":    rev.PageID,
		"title":      rev.Title,
		"slug":       rev.Slug,
		"review":     toReviewFields(rev.Review),
		"created_at": rev.CreatedAt,
	}
}

// RestoreRevision restores a revision's content. The page keeps its live
// review schedule.
func (a *API) RestoreRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "revisionID")
	if !ok {
		return
	}
	page, err := a.scheduler.RestoreRevision(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.scheduler.Load(r.Context(), page.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(item))
}
