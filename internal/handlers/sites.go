package handlers

import (
	"net/http"
	"strconv"

	"reviewd/internal/models"
)

func toSite(s *models.Site) map[string]any {
	return map[string]any{
		"id":           s.ID,
		"hostname":     s.Hostname,
		"site_name":    s.SiteName,
		"root_page_id": s.RootPageID,
		"root_path":    s.RootPath,
		"is_default":   s.IsDefault,
		"created_at":   s.CreatedAt,
	}
}

// ListSites returns every site ordered by hostname.
func (a *API) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := a.rules.Sites(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]map[string]any, len(sites))
	for i := range sites {
		items[i] = toSite(&sites[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// CreateSite adds a site with its own root page and rule set.
func (a *API) CreateSite(w http.ResponseWriter, r *http.Request) {
	b, msg := decodeSiteCreate(r.Body)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	site, err := a.rules.CreateSite(r.Context(), b.Hostname, b.SiteName, b.IsDefault)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSite(site))
}

// DeleteSite removes a site. With ?pages=true its page tree goes too.
func (a *API) DeleteSite(w http.ResponseWriter, r *http.Request) {
	siteID, ok := uuidParam(w, r, "siteID")
	if !ok {
		return
	}
	var pages bool
	if raw := r.URL.Query().Get("pages"); raw != "" {
		var err error
		if pages, err = strconv.ParseBool(raw); err != nil {
			badRequest(w, "pages must be true or false.")
			return
		}
	}
	if err := a.rules.DeleteSite(r.Context(), siteID, pages); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
