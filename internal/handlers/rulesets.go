// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
)

type ruleJSON struct {
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	Months    int    `json:"frequency_months"`
	Frequency string `json:"frequency"`
	SortOrder int    `json:"sort_order"`
}

// GetFrequencies returns a site's review frequency rules.
func (a *API) GetFrequencies(w http.ResponseWriter, r *http.Request) {
	siteID, ok := uuidParam(w, r, "siteID")
	if !ok {
		return
	}
	settings, err := a.rules.Load(r.Context(), siteID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rules := make([]ruleJSON, 0, len(settings.Rules))
	for _, rule := range settings.Rules {
		label := rule.Kind
		if k, ok := a.registry.Lookup(rule.Kind); ok {
			label = k.Label
		}
		rules = append(rules, ruleJSON{
			Kind:      rule.Kind,
			Label:     label,
			Months:    int(rule.Frequency),
			Frequency: rule.Frequency.Label(),
			SortOrder: rule.SortOrder,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site_id":    settings.SiteID,
		"updated_at": settings.UpdatedAt,
		"rules":      rules,
	})
}

// PutFrequencies saves a site's rule set. With a job queue the save and
// its cascade run in the background and 202 is returned; otherwise the
// save completes before responding.
func (a *API) PutFrequencies(w http.ResponseWriter, r *http.Request) {
	siteID, ok := uuidParam(w, r, "siteID")
	if !ok {
		return
	}
	changes, msg := decodeFrequencies(r.Body)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	if err := a.rules.ValidateChanges(changes); err != nil {
		writeError(w, r, err)
		return
	}

	if a.queue == nil {
		result, err := a.rules.Save(r.Context(), siteID, changes)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if _, err := a.rules.Site(r.Context(), siteID); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := a.queue.Enqueue(r.Context(), siteID, changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("rule set save queued", "site_id", siteID, "job_id", job.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":  job.ID,
		"site_id": siteID,
		"status":  "queued",
	})
}
