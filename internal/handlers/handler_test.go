// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests.
// Tests needing PostgreSQL are skipped when it is unavailable.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewd/internal/jobs"
	"reviewd/internal/models"
	"reviewd/internal/review"
	"reviewd/internal/store"
	"reviewd/internal/testdb"
)

// testEnv is one isolated site tree with the API wired against it.
type testEnv struct {
	db        *sql.DB
	site      *models.Site
	root      *models.Page
	registry  *review.Registry
	scheduler *review.Scheduler
	api       *API
}

func newTestEnv(t *testing.T, queue RuleSetQueue) *testEnv {
	t.Helper()
	db := testdb.Open(t)
	ctx := context.Background()

	pages := store.NewPageStore(db)
	sites := store.NewSiteStore(db, time.Minute)

	var root *models.Page
	err := store.RunInTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		root, err = pages.InsertRoot(ctx, tx, &models.Page{
			Title: "API root", Slug: "api-root", Kind: models.SimplePageKind, Live: true,
		})
		return err
	})
	require.NoError(t, err)

	site, err := sites.Create(ctx, &models.Site{
		Hostname:   "api-" + uuid.NewString()[:8] + ".local",
		SiteName:   "API test",
		RootPageID: root.ID,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		sites.Delete(ctx, site.ID)
		pages.Delete(ctx, root.ID)
	})

	registry := review.NewRegistry()
	registry.Override(models.PolicyPageKind, models.GuidancePageKind)
	scheduler := review.NewScheduler(db, registry, sites)

	return &testEnv{
		db:        db,
		site:      site,
		root:      root,
		registry:  registry,
		scheduler: scheduler,
		api: NewAPI(scheduler, review.NewAggregator(db, registry),
			review.NewRuleSetService(db, registry, sites), registry, sites, nil, queue),
	}
}

func (e *testEnv) page(t *testing.T, title, kind string, last *time.Time) *models.Page {
	t.Helper()
	p, err := e.scheduler.CreatePage(context.Background(), e.root.ID,
		models.Page{Title: title, Slug: title, Kind: kind, Live: true},
		models.ReviewFields{LastReviewDate: last},
	)
	require.NoError(t, err)
	return p
}

// unitAPI returns an API whose handlers fail before touching the database.
func unitAPI() *API {
	registry := review.NewRegistry()
	registry.Override(models.PolicyPageKind, models.GuidancePageKind)
	return NewAPI(nil, review.NewAggregator(nil, registry),
		review.NewRuleSetService(nil, registry, nil), registry, nil, nil, nil)
}

// serve routes a single request through a chi router so URL parameters
// resolve as in production.
func serve(t *testing.T, h http.HandlerFunc, method, pattern, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func monthsAgo(n int) *time.Time {
	t := review.AddMonths(today(), -n)
	return &t
}

func ids(items []rowJSON) []uuid.UUID {
	out := make([]uuid.UUID, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// fakeQueue records enqueued rule set saves.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []*jobs.RuleSetJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, siteID uuid.UUID, changes map[string]models.ReviewFrequency) (*jobs.RuleSetJob, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job := &jobs.RuleSetJob{ID: uuid.New(), SiteID: siteID, Changes: changes, EnqueuedAt: time.Now()}
	q.jobs = append(q.jobs, job)
	return job, nil
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusTeapot, map[string]string{"a": "b"})

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a":"b"}`, rec.Body.String())
}

func TestWriteErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("page x: %w", store.ErrNotFound), http.StatusNotFound},
		{review.ErrNotReviewable, http.StatusUnprocessableEntity},
		{store.ErrDuplicateRule, http.StatusConflict},
		{fmt.Errorf("create site: %w", store.ErrDuplicateSite), http.StatusConflict},
		{fmt.Errorf("delete page: %w", store.ErrPageInUse), http.StatusConflict},
		{fmt.Errorf("%w: 7", models.ErrInvalidFrequency), http.StatusBadRequest},
		{models.ErrInvalidReviewFields, http.StatusBadRequest},
		{review.ErrUnknownKind, http.StatusBadRequest},
		{review.ErrDerivedField, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("secret dsn"))
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestKinds(t *testing.T) {
	rec := serve(t, unitAPI().Kinds, http.MethodGet, "/api/kinds", "/api/kinds", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Kinds []struct {
			Name  string `json:"name"`
			Label string `json:"label"`
		} `json:"kinds"`
		Frequencies []frequencyJSON `json:"frequencies"`
		Default     int             `json:"default_frequency"`
	}](t, rec)

	require.Len(t, body.Kinds, 2)
	assert.Equal(t, "guidance_page", body.Kinds[0].Name)
	assert.Equal(t, "policy_page", body.Kinds[1].Name)
	assert.Len(t, body.Frequencies, len(models.ReviewFrequencies))
	assert.Equal(t, frequencyJSON{Months: 24, Label: "2 years"}, body.Frequencies[6])
	assert.Equal(t, 12, body.Default)
	assert.NotContains(t, rec.Body.String(), "policy_pages", "table names stay internal")
}

func TestBadRequestsBeforeStorage(t *testing.T) {
	api := unitAPI()
	tests := []struct {
		name    string
		h       http.HandlerFunc
		method  string
		pattern string
		target  string
		body    string
	}{
		{"review bad id", api.GetReview, http.MethodGet, "/api/pages/{id}/review", "/api/pages/nope/review", ""},
		{"patch bad body", api.PatchReview, http.MethodPatch, "/api/pages/{id}/review", "/api/pages/" + uuid.NewString() + "/review", `{"title":"x"}`},
		{"put derived field", api.PutReview, http.MethodPut, "/api/pages/{id}/review", "/api/pages/" + uuid.NewString() + "/review", `{"next_review_date":"2030-01-01"}`},
		{"restore bad id", api.RestoreRevision, http.MethodPost, "/api/revisions/{revisionID}/restore", "/api/revisions/1/restore", ""},
		{"overdue bad limit", api.Overdue, http.MethodGet, "/api/dashboard/overdue", "/api/dashboard/overdue?limit=0", ""},
		{"this month bad site", api.ThisMonth, http.MethodGet, "/api/dashboard/this-month", "/api/dashboard/this-month?site=x", ""},
		{"report bad date", api.PeriodicReport, http.MethodGet, "/api/reports/periodic-review", "/api/reports/periodic-review?last_review_from=2024-31-01", ""},
		{"report reversed range", api.PeriodicReport, http.MethodGet, "/api/reports/periodic-review", "/api/reports/periodic-review?next_review_from=2025-01-01&next_review_to=2024-01-01", ""},
		{"report unknown kind", api.PeriodicReport, http.MethodGet, "/api/reports/periodic-review", "/api/reports/periodic-review?kind=news_page", ""},
		{"frequencies unknown kind", api.PutFrequencies, http.MethodPut, "/api/sites/{siteID}/review-frequencies", "/api/sites/" + uuid.NewString() + "/review-frequencies", `{"frequencies":{"news_page":6}}`},
		{"patch frequency above limit", api.PatchReview, http.MethodPatch, "/api/pages/{id}/review", "/api/pages/" + uuid.NewString() + "/review", `{"last_review_date":"2025-01-15","custom_review_frequency":9223372036854775807}`},
		{"list pages without kind", api.ListPages, http.MethodGet, "/api/pages", "/api/pages", ""},
		{"create page without parent", api.CreatePage, http.MethodPost, "/api/pages", "/api/pages", `{"title":"x","kind":"policy_page"}`},
		{"create page review on plain kind", api.CreatePage, http.MethodPost, "/api/pages", "/api/pages", `{"parent_id":"` + uuid.NewString() + `","title":"x","kind":"simple_page","review":{}}`},
		{"create page frequency above limit", api.CreatePage, http.MethodPost, "/api/pages", "/api/pages", `{"parent_id":"` + uuid.NewString() + `","title":"x","kind":"policy_page","review":{"custom_review_frequency":1201}}`},
		{"publish bad id", api.PublishPage, http.MethodPost, "/api/pages/{id}/publish", "/api/pages/nope/publish", ""},
		{"delete page bad id", api.DeletePage, http.MethodDelete, "/api/pages/{id}", "/api/pages/nope", ""},
		{"create site bad hostname", api.CreateSite, http.MethodPost, "/api/sites", "/api/sites", `{"hostname":"not a host"}`},
		{"delete site bad pages flag", api.DeleteSite, http.MethodDelete, "/api/sites/{siteID}", "/api/sites/" + uuid.NewString() + "?pages=maybe", ""},
		{"frequencies invalid months", api.PutFrequencies, http.MethodPut, "/api/sites/{siteID}/review-frequencies", "/api/sites/" + uuid.NewString() + "/review-frequencies", `{"frequencies":{"policy_page":7}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.h, tt.method, tt.pattern, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec), "error")
		})
	}
}

func TestReviewEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	policy := env.page(t, "policy", "policy_page", &[]time.Time{time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)}[0])
	plain := env.page(t, "plain", models.SimplePageKind, nil)

	pattern := "/api/pages/{id}/review"
	target := "/api/pages/" + policy.ID.String() + "/review"

	rec := serve(t, env.api.GetReview, http.MethodGet, pattern, target, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode[itemJSON](t, rec)
	assert.Equal(t, env.site.ID, item.SiteID)
	require.NotNil(t, item.Review.NextReviewDate)
	assert.Equal(t, "2025-01-31", *item.Review.NextReviewDate)

	rec = serve(t, env.api.PatchReview, http.MethodPatch, pattern, target, `{"custom_review_frequency":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item = decode[itemJSON](t, rec)
	assert.Equal(t, "2024-02-29", *item.Review.NextReviewDate)

	rec = serve(t, env.api.PatchReview, http.MethodPatch, pattern, target, `{"next_review_date":"2030-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, env.api.PutReview, http.MethodPut, pattern, target, `{"last_review_date":null,"current_version_ref":"v9"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item = decode[itemJSON](t, rec)
	assert.Nil(t, item.Review.LastReviewDate)
	assert.Nil(t, item.Review.NextReviewDate)
	assert.Nil(t, item.Review.CustomReviewFrequency)
	assert.Equal(t, "v9", item.Review.CurrentVersionRef)

	rec = serve(t, env.api.GetReview, http.MethodGet, pattern, "/api/pages/"+plain.ID.String()+"/review", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, env.api.GetReview, http.MethodGet, pattern, "/api/pages/"+uuid.NewString()+"/review", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboardEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	overdue := env.page(t, "overdue", "policy_page", monthsAgo(13))
	due := env.page(t, "due", "guidance_page", monthsAgo(12))
	env.page(t, "never", "policy_page", nil)

	hidden := env.page(t, "hidden", "policy_page", monthsAgo(14))
	_, err := env.db.Exec(`UPDATE pages SET live = false WHERE id = $1`, hidden.ID)
	require.NoError(t, err)

	site := "?site=" + env.site.ID.String()

	rec := serve(t, env.api.Overdue, http.MethodGet, "/api/dashboard/overdue", "/api/dashboard/overdue"+site, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[listJSON](t, rec)
	assert.Equal(t, []uuid.UUID{overdue.ID}, ids(list.Items), "live items only")
	assert.Equal(t, 1, list.Count)
	require.NotNil(t, list.Items[0].NextReviewDate)
	assert.Equal(t, review.AddMonths(*monthsAgo(13), 12).Format(time.DateOnly), *list.Items[0].NextReviewDate)

	rec = serve(t, env.api.ThisMonth, http.MethodGet, "/api/dashboard/this-month", "/api/dashboard/this-month"+site, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list = decode[listJSON](t, rec)
	assert.Equal(t, []uuid.UUID{due.ID}, ids(list.Items))

	env.page(t, "overdue2", "guidance_page", monthsAgo(20))
	rec = serve(t, env.api.Overdue, http.MethodGet, "/api/dashboard/overdue", "/api/dashboard/overdue"+site+"&limit=1", "")
	list = decode[listJSON](t, rec)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 2, list.Count, "count ignores the panel limit")
	assert.Equal(t, overdue.ID, list.Items[0].ID, "most recently due first")

	rec = serve(t, env.api.Overdue, http.MethodGet, "/api/dashboard/overdue", "/api/dashboard/overdue?site="+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPeriodicReportEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	policyJan := env.page(t, "policy-jan", "policy_page", &jan)
	policyJun := env.page(t, "policy-jun", "policy_page", &jun)
	guidanceJan := env.page(t, "guidance-jan", "guidance_page", &jan)
	env.page(t, "policy-never", "policy_page", nil)

	site := "site=" + env.site.ID.String()
	get := func(q string) listJSON {
		rec := serve(t, env.api.PeriodicReport, http.MethodGet, "/api/reports/periodic-review", "/api/reports/periodic-review?"+site+q, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[listJSON](t, rec)
	}

	all := get("")
	assert.ElementsMatch(t, []uuid.UUID{policyJan.ID, policyJun.ID, guidanceJan.ID}, ids(all.Items), "unreviewed items excluded")

	policies := get("&kind=policy_page")
	assert.Equal(t, []uuid.UUID{policyJan.ID, policyJun.ID}, ids(policies.Items), "ordered by next review date")

	ranged := get("&last_review_from=2024-01-15&last_review_to=2024-01-15")
	assert.ElementsMatch(t, []uuid.UUID{policyJan.ID, guidanceJan.ID}, ids(ranged.Items), "bounds are inclusive")

	next := get("&next_review_from=2025-06-01")
	assert.Equal(t, []uuid.UUID{policyJun.ID}, ids(next.Items))
}

func TestFrequenciesEndpointsSync(t *testing.T) {
	env := newTestEnv(t, nil)
	policy := env.page(t, "policy", "policy_page", &[]time.Time{time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}[0])

	pattern := "/api/sites/{siteID}/review-frequencies"
	target := "/api/sites/" + env.site.ID.String() + "/review-frequencies"

	rec := serve(t, env.api.PutFrequencies, http.MethodPut, pattern, target, `{"frequencies":{"policy_page":6}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[review.SaveResult](t, rec)
	assert.ElementsMatch(t, []string{"guidance_page", "policy_page"}, result.Created)
	assert.Equal(t, int64(1), result.Recomputed["policy_page"])

	item, err := env.scheduler.Load(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-10", item.Review.NextReviewDate.Format(time.DateOnly))

	rec = serve(t, env.api.GetFrequencies, http.MethodGet, pattern, target, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Rules []ruleJSON `json:"rules"`
	}](t, rec)
	require.Len(t, body.Rules, 2)
	byKind := map[string]ruleJSON{}
	for _, r := range body.Rules {
		byKind[r.Kind] = r
	}
	assert.Equal(t, 6, byKind["policy_page"].Months)
	assert.Equal(t, "Policy page", byKind["policy_page"].Label)
	assert.Equal(t, 12, byKind["guidance_page"].Months)

	missing := "/api/sites/" + uuid.NewString() + "/review-frequencies"
	rec = serve(t, env.api.PutFrequencies, http.MethodPut, pattern, missing, `{"frequencies":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(t, env.api.GetFrequencies, http.MethodGet, pattern, missing, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFrequenciesEndpointQueued(t *testing.T) {
	queue := &fakeQueue{}
	env := newTestEnv(t, queue)

	pattern := "/api/sites/{siteID}/review-frequencies"
	target := "/api/sites/" + env.site.ID.String() + "/review-frequencies"

	rec := serve(t, env.api.PutFrequencies, http.MethodPut, pattern, target, `{"frequencies":{"guidance_page":3}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "queued", body["status"])

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, env.site.ID, queue.jobs[0].SiteID)
	assert.Equal(t, models.ThreeMonths, queue.jobs[0].Changes["guidance_page"])
	assert.Equal(t, queue.jobs[0].ID.String(), body["job_id"])

	rec = serve(t, env.api.PutFrequencies, http.MethodPut, pattern, "/api/sites/"+uuid.NewString()+"/review-frequencies", `{"frequencies":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, queue.jobs, 1, "unknown site not queued")

	queue.err = errors.New("valkey down")
	rec = serve(t, env.api.PutFrequencies, http.MethodPut, pattern, target, `{"frequencies":{}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRevisionEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	policy := env.page(t, "policy", "policy_page", &[]time.Time{time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)}[0])

	rec := serve(t, env.api.CreateRevision, http.MethodPost, "/api/pages/{id}/revisions", "/api/pages/"+policy.ID.String()+"/revisions", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rev := decode[struct {
		ID     uuid.UUID        `json:"id"`
		Review reviewFieldsJSON `json:"review"`
	}](t, rec)
	assert.Equal(t, "2023-05-01", *rev.Review.LastReviewDate)

	rec = serve(t, env.api.ListRevisions, http.MethodGet, "/api/pages/{id}/revisions", "/api/pages/"+policy.ID.String()+"/revisions", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	revs := decode[struct {
		Items []struct {
			ID uuid.UUID `json:"id"`
		} `json:"items"`
		Count int `json:"count"`
	}](t, rec)
	require.Equal(t, 1, revs.Count)
	assert.Equal(t, rev.ID, revs.Items[0].ID)

	rec = serve(t, env.api.ListRevisions, http.MethodGet, "/api/pages/{id}/revisions", "/api/pages/"+uuid.NewString()+"/revisions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := env.scheduler.UpdateReview(context.Background(), policy.ID, review.ReviewUpdate{
		Fields: []string{models.FieldLastReviewDate},
		Values: models.ReviewFields{LastReviewDate: &[]time.Time{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}[0]},
	})
	require.NoError(t, err)
	_, err = env.db.Exec(`UPDATE pages SET title = 'edited' WHERE id = $1`, policy.ID)
	require.NoError(t, err)

	rec = serve(t, env.api.RestoreRevision, http.MethodPost, "/api/revisions/{revisionID}/restore", "/api/revisions/"+rev.ID.String()+"/restore", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode[itemJSON](t, rec)
	assert.Equal(t, "policy", item.Title)
	assert.Equal(t, "2024-05-01", *item.Review.LastReviewDate, "live schedule kept")
	assert.Equal(t, "2025-05-01", *item.Review.NextReviewDate)

	rec = serve(t, env.api.RestoreRevision, http.MethodPost, "/api/revisions/{revisionID}/restore", "/api/revisions/"+uuid.NewString()+"/restore", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPageEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	body := fmt.Sprintf(`{"parent_id":%q,"title":"Data Retention (v2)","kind":"policy_page","review":{"last_review_date":"2024-01-31","custom_review_frequency":6}}`, env.root.ID)
	rec := serve(t, env.api.CreatePage, http.MethodPost, "/api/pages", "/api/pages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[pageJSON](t, rec)
	assert.Equal(t, "data-retention-v2", created.Slug)
	assert.True(t, created.Live)

	rec = serve(t, env.api.GetReview, http.MethodGet, "/api/pages/{id}/review", "/api/pages/"+created.ID.String()+"/review", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode[itemJSON](t, rec)
	require.NotNil(t, item.Review.NextReviewDate)
	assert.Equal(t, "2024-07-31", *item.Review.NextReviewDate)

	rec = serve(t, env.api.ListPages, http.MethodGet, "/api/pages", "/api/pages?kind=policy_page", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []pageJSON `json:"items"`
	}](t, rec)
	var found bool
	for _, p := range list.Items {
		found = found || p.ID == created.ID
	}
	assert.True(t, found, "created page missing from kind listing")

	rec = serve(t, env.api.UnpublishPage, http.MethodPost, "/api/pages/{id}/unpublish", "/api/pages/"+created.ID.String()+"/unpublish", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[pageJSON](t, rec).Live)

	rec = serve(t, env.api.PublishPage, http.MethodPost, "/api/pages/{id}/publish", "/api/pages/"+created.ID.String()+"/publish", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[pageJSON](t, rec).Live)

	rec = serve(t, env.api.DeletePage, http.MethodDelete, "/api/pages/{id}", "/api/pages/"+env.root.ID.String(), "")
	assert.Equal(t, http.StatusConflict, rec.Code, "site root must not be deletable")

	rec = serve(t, env.api.DeletePage, http.MethodDelete, "/api/pages/{id}", "/api/pages/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, env.api.GetReview, http.MethodGet, "/api/pages/{id}/review", "/api/pages/"+created.ID.String()+"/review", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, env.api.CreatePage, http.MethodPost, "/api/pages", "/api/pages",
		fmt.Sprintf(`{"parent_id":%q,"title":"orphan","kind":"policy_page"}`, uuid.New()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchReviewRejectsOversizedFrequency(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.page(t, "policy", "policy_page", monthsAgo(1))
	target := "/api/pages/" + p.ID.String() + "/review"

	for _, body := range []string{
		`{"custom_review_frequency":1201}`,
		`{"custom_review_frequency":3000000000}`,
	} {
		rec := serve(t, env.api.PatchReview, http.MethodPatch, "/api/pages/{id}/review", target, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := serve(t, env.api.PatchReview, http.MethodPatch, "/api/pages/{id}/review", target, `{"custom_review_frequency":1200}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode[itemJSON](t, rec)
	require.NotNil(t, item.Review.NextReviewDate)
	assert.Equal(t, review.AddMonths(*monthsAgo(1), 1200).Format(time.DateOnly), *item.Review.NextReviewDate)
}

func TestSiteEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	host := "site-" + uuid.NewString()[:8] + ".local"

	rec := serve(t, env.api.CreateSite, http.MethodPost, "/api/sites", "/api/sites", `{"hostname":"`+strings.ToUpper(host)+`","site_name":"Handbook"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	site := decode[map[string]any](t, rec)
	assert.Equal(t, host, site["hostname"])
	siteID := site["id"].(string)

	rec = serve(t, env.api.CreateSite, http.MethodPost, "/api/sites", "/api/sites", `{"hostname":"`+host+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = serve(t, env.api.GetFrequencies, http.MethodGet, "/api/sites/{siteID}/review-frequencies", "/api/sites/"+siteID+"/review-frequencies", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rules := decode[struct {
		Rules []ruleJSON `json:"rules"`
	}](t, rec)
	assert.Len(t, rules.Rules, 2, "new site gets a rule per registered kind")

	rec = serve(t, env.api.ListSites, http.MethodGet, "/api/sites", "/api/sites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), host)

	rec = serve(t, env.api.DeleteSite, http.MethodDelete, "/api/sites/{siteID}", "/api/sites/"+siteID+"?pages=true", "")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = serve(t, env.api.DeleteSite, http.MethodDelete, "/api/sites/{siteID}", "/api/sites/"+siteID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
