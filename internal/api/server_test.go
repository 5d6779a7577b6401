package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crawlspace/internal/crawl"
	"github.com/sells-group/crawlspace/internal/jobs"
	"github.com/sells-group/crawlspace/internal/model"
	"github.com/sells-group/crawlspace/internal/store"
)

type fakeCrawler struct {
	err   error
	terms []string
}

func (f *fakeCrawler) ScheduleSeed(_ context.Context, _ store.StorageContext, seed string) (jobs.Job, error) {
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	return jobs.Job{ID: "job-" + seed, Project: "discovery-project", Spider: "website_finder"}, nil
}

func (f *fakeCrawler) ScheduleKeywords(_ context.Context, _ store.StorageContext, terms []string) (jobs.Job, error) {
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	f.terms = terms
	return jobs.Job{ID: "kw", Project: "searchengine-project", Spider: "google.com"}, nil
}

func (f *fakeCrawler) RefreshStates(_ context.Context, _ store.StorageContext) (crawl.RefreshResult, error) {
	return crawl.RefreshResult{Checked: 2, Updated: 1}, f.err
}

func newTestStore(t *testing.T, initWorkspaces bool) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	if initWorkspaces {
		require.NoError(t, st.InitWorkspaces(context.Background()))
	}
	return st
}

func newTestServer(t *testing.T, st store.Store, crawler Crawler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(st, crawler, Options{}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	st := newTestStore(t, true)
	srv := newTestServer(t, st, nil)

	resp := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, st.Close())
	resp = do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWorkspaceLifecycle(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)

	resp := do(t, srv, http.MethodPost, "/api/workspaces", map[string]string{"name": "case-7"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[model.Workspace](t, resp)
	assert.Equal(t, "case-7", created.Name)
	assert.False(t, created.Selected)

	resp = do(t, srv, http.MethodPost, "/api/workspaces", map[string]string{"name": "case-7"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/workspaces", map[string]string{"name": "bad name;"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/workspaces/"+created.ID+"/select", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[model.Workspace](t, resp).Selected)

	resp = do(t, srv, http.MethodGet, "/api/workspaces/selected", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decodeBody[model.Workspace](t, resp).ID)

	resp = do(t, srv, http.MethodDelete, "/api/workspaces/"+created.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/workspaces", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]model.Workspace](t, resp)
	assert.Len(t, list, 2)

	var defaultID string
	for _, ws := range list {
		if ws.Name == "default" {
			defaultID = ws.ID
		}
	}
	resp = do(t, srv, http.MethodDelete, "/api/workspaces/"+defaultID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWorkspaceNotFound(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/workspaces/nope"},
		{http.MethodPost, "/api/workspaces/nope/select"},
		{http.MethodDelete, "/api/workspaces/nope"},
	} {
		resp := do(t, srv, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, tc.path)
	}
}

func TestURLsAndHosts(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)

	resp := do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{
		URL:  "https://www.example.com/a",
		HTML: "<html><head><title>A page</title></head></html>",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "https://www.example.com/a"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeBody[map[string]bool](t, resp)["inserted"])

	resp = do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/urls/lookup?url=https://www.example.com/a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decodeBody[model.URLRecord](t, resp)
	assert.Equal(t, "example.com", rec.Host)
	assert.Equal(t, "A page", rec.Title)

	resp = do(t, srv, http.MethodGet, "/api/urls/lookup?url=https://missing.com/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/api/urls/score", map[string]any{"url": "https://www.example.com/a", "score": 0.75})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/hosts/example.com/score", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0.75, decodeBody[map[string]any](t, resp)["score"], 0.0001)

	resp = do(t, srv, http.MethodGet, "/api/hosts/example.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	host := decodeBody[model.HostRecord](t, resp)
	assert.EqualValues(t, 2, host.NumURLs)

	resp = do(t, srv, http.MethodGet, "/api/hosts?page=1&page_size=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]model.HostRecord](t, resp), 1)

	resp = do(t, srv, http.MethodGet, "/api/urls?host=example.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]model.URLRecord](t, resp), 1)
}

func TestHostQueryValidation(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)

	for _, path := range []string{
		"/api/hosts?regex=(",
		"/api/hosts?regex=a&field=num_urls",
		"/api/hosts?page=x",
		"/api/hosts?show_all=maybe",
		"/api/tags/search?term=[",
		"/api/urls?ns=bogus",
	} {
		resp := do(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}

	resp := do(t, srv, http.MethodGet, "/api/hosts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []model.HostRecord{}, decodeBody[[]model.HostRecord](t, resp))
}

func TestTagsAndDisplay(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)
	do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "https://shop.example.org/x"})

	resp := do(t, srv, http.MethodGet, "/api/hosts/unknown.org/tags", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/api/hosts/example.org/tags", map[string][]string{"tags": {" fraud ", "pharma", "fraud"}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/hosts/example.org/tags", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"fraud", "pharma"}, decodeBody[[]string](t, resp))

	resp = do(t, srv, http.MethodGet, "/api/tags/search?term=^ph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decodeBody[store.TagSearch](t, resp)
	require.Len(t, found.TagMatches, 1)
	assert.Equal(t, "example.org", found.TagMatches[0].Host)
	assert.Empty(t, found.HostMatches)

	resp = do(t, srv, http.MethodGet, "/api/tags/search?term=^example", nil)
	found = decodeBody[store.TagSearch](t, resp)
	assert.Empty(t, found.TagMatches)
	require.Len(t, found.HostMatches, 1)
	assert.Equal(t, "example.org", found.HostMatches[0].Host)

	resp = do(t, srv, http.MethodPut, "/api/hosts/example.org/display", map[string]bool{"display": false})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/hosts", nil)
	assert.Empty(t, decodeBody[[]model.HostRecord](t, resp))
	resp = do(t, srv, http.MethodGet, "/api/hosts?show_all=true", nil)
	assert.Len(t, decodeBody[[]model.HostRecord](t, resp), 1)

	resp = do(t, srv, http.MethodPut, "/api/hosts/example.org/display", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteMatching(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)
	for _, u := range []string{"https://a.com/1", "https://a.com/2", "https://b.com/1"} {
		do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: u})
	}

	resp := do(t, srv, http.MethodDelete, "/api/urls", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, "/api/urls?match=a.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, store.DeleteResult{URLs: 2, Hosts: 1}, decodeBody[store.DeleteResult](t, resp))

	resp = do(t, srv, http.MethodDelete, "/api/hosts?match=b.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, store.DeleteResult{URLs: 1, Hosts: 1}, decodeBody[store.DeleteResult](t, resp))
}

func TestDeleteAllMatching(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)
	for _, u := range []string{"https://ads.com/1", "https://blog.com/ads-review", "https://blog.com/ok"} {
		do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: u})
	}

	resp := do(t, srv, http.MethodDelete, "/api/matching", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, "/api/matching?match=ads", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, store.DeleteResult{URLs: 2, Hosts: 2}, decodeBody[store.DeleteResult](t, resp))

	resp = do(t, srv, http.MethodGet, "/api/urls", nil)
	urls := decodeBody[[]model.URLRecord](t, resp)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://blog.com/ok", urls[0].URL)
}

func TestListHosts_Enriched(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)
	do(t, srv, http.MethodPost, "/api/urls?ns=known-data", model.URLRecord{URL: "https://known.com/"})
	do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "https://known.com/a"})
	do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "https://fresh.com/a"})

	resp := do(t, srv, http.MethodPut, "/api/urls/screenshot", map[string]string{"url": "https://known.com/a", "path": "shots/known.png"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/hosts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decodeBody[[]map[string]any](t, resp)
	require.Len(t, rows, 2)
	byHost := map[string]map[string]any{}
	for _, row := range rows {
		byHost[row["host"].(string)] = row
	}
	assert.Equal(t, true, byHost["known.com"]["is_known_host"])
	assert.Equal(t, "shots/known.png", byHost["known.com"]["hsu_screenshot_path"])
	assert.Equal(t, false, byHost["fresh.com"]["is_known_host"])
	assert.Contains(t, byHost["fresh.com"], "hsu_screenshot_path")
	assert.Nil(t, byHost["fresh.com"]["hsu_screenshot_path"])
}

func TestLabelledURLs(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)
	yes, no := true, false
	do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "https://a.com/yes", Interest: &yes})
	do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "https://a.com/no", Interest: &no})
	do(t, srv, http.MethodPost, "/api/urls", model.URLRecord{URL: "https://a.com/unset"})

	resp := do(t, srv, http.MethodGet, "/api/urls/labelled", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sets := decodeBody[map[string][]model.URLRecord](t, resp)
	require.Len(t, sets["relevant"], 1)
	assert.Equal(t, "https://a.com/yes", sets["relevant"][0].URL)
	require.Len(t, sets["irrelevant"], 1)
	assert.Equal(t, "https://a.com/no", sets["irrelevant"][0].URL)
}

func TestPreferences(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)

	resp := do(t, srv, http.MethodPut, "/api/preferences/keywords", stringsBody{Values: []string{"pills", "ids"}})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/preferences/keywords", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"pills", "ids"}, decodeBody[stringsBody](t, resp).Values)

	resp = do(t, srv, http.MethodPut, "/api/preferences/blur", map[string]int{"level": 3})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, srv, http.MethodGet, "/api/preferences/blur", nil)
	assert.Equal(t, 3, *decodeBody[blurBody](t, resp).Level)

	resp = do(t, srv, http.MethodPut, "/api/preferences/blur", map[string]int{"level": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreferences_NoWorkspaceSelected(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, false), nil)

	resp := do(t, srv, http.MethodGet, "/api/preferences/searchterms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{}, decodeBody[stringsBody](t, resp).Values)

	resp = do(t, srv, http.MethodPut, "/api/preferences/searchterms", stringsBody{Values: []string{"x"}})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestSeeds_WithoutScheduler(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)

	resp := do(t, srv, http.MethodPost, "/api/seeds", map[string]string{"url": "https://seed.com/"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/seeds", map[string]string{"url": "seed.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/seeds/lookup?url=https://seed.com/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.SeedStateInitializing, decodeBody[model.SeedRecord](t, resp).State)

	resp = do(t, srv, http.MethodPost, "/api/seeds/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/seeds?ns=known-data", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeeds_WithScheduler(t *testing.T) {
	crawler := &fakeCrawler{}
	srv := newTestServer(t, newTestStore(t, true), crawler)

	resp := do(t, srv, http.MethodPost, "/api/seeds", map[string]string{"url": "https://seed.com/"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "job-https://seed.com/", decodeBody[jobs.Job](t, resp).ID)

	resp = do(t, srv, http.MethodPost, "/api/seeds/keywords", map[string][]string{"terms": {"a", "b"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{"a", "b"}, crawler.terms)

	resp = do(t, srv, http.MethodPost, "/api/seeds/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, crawl.RefreshResult{Checked: 2, Updated: 1}, decodeBody[crawl.RefreshResult](t, resp))

	crawler.err = errors.New("scheduler exploded")
	resp = do(t, srv, http.MethodPost, "/api/seeds", map[string]string{"url": "https://seed.com/"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", decodeBody[map[string]string](t, resp)["error"])
}

func TestFeatures(t *testing.T) {
	srv := newTestServer(t, newTestStore(t, true), nil)
	hi, lo := 0.9, 0.1

	resp := do(t, srv, http.MethodPost, "/api/features", []model.ClassifierFeature{
		{Fingerprint: "f1", Score: &lo, Data: map[string]any{"k": "v"}},
		{Fingerprint: "f2", Score: &hi},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, decodeBody[map[string]int64](t, resp)["saved"])

	resp = do(t, srv, http.MethodGet, "/api/features?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]model.ClassifierFeature](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "f2", list[0].Fingerprint)

	resp = do(t, srv, http.MethodPost, "/api/features", []model.ClassifierFeature{{Fingerprint: ""}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{&store.ValidationError{Field: "f", Reason: "r"}, http.StatusBadRequest},
		{errNotFound, http.StatusNotFound},
		{store.ErrWorkspaceNotFound, http.StatusNotFound},
		{&store.DuplicateWorkspaceError{Name: "a"}, http.StatusConflict},
		{&store.DeletingSelectedWorkspaceError{ID: "1"}, http.StatusConflict},
		{store.ErrNoWorkspaceSelected, http.StatusPreconditionFailed},
		{errNoScheduler, http.StatusServiceUnavailable},
		{jobs.ErrSchedulerUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
