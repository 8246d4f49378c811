package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"reviewd/internal/models"
)

// pageJSON is a page of the tree without review metadata.
type pageJSON struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Depth     int       `json:"depth"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Kind      string    `json:"kind"`
	Live      bool      `json:"live"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPage(p *models.Page) pageJSON {
	return pageJSON{
		ID:        p.ID,
		Path:      p.Path,
		Depth:     p.Depth,
		Title:     p.Title,
		Slug:      p.Slug,
		Kind:      p.Kind,
		Live:      p.Live,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ListPages lists the pages of one kind in tree order.
func (a *API) ListPages(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if !kindPattern.MatchString(kind) {
		badRequest(w, "kind is required.")
		return
	}
	pages, err := a.scheduler.PagesOfKind(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]pageJSON, len(pages))
	for i := range pages {
		items[i] = toPage(&pages[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// CreatePage adds a page below parent_id. Pages of a reviewable kind
// start with the review metadata given in the body.
func (a *API) CreatePage(w http.ResponseWriter, r *http.Request) {
	parentID, page, fields, msg := decodePageCreate(r.Body)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	created, err := a.scheduler.CreatePage(r.Context(), parentID, page, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPage(created))
}

// PublishPage puts a page online.
func (a *API) PublishPage(w http.ResponseWriter, r *http.Request) {
	a.setLive(w, r, true)
}

// UnpublishPage takes a page offline. Its review schedule is kept.
func (a *API) UnpublishPage(w http.ResponseWriter, r *http.Request) {
	a.setLive(w, r, false)
}

func (a *API) setLive(w http.ResponseWriter, r *http.Request, live bool) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	page, err := a.scheduler.SetLive(r.Context(), id, live)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPage(page))
}

// DeletePage removes a page with its subtree and review rows.
func (a *API) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := a.scheduler.DeletePage(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
