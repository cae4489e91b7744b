package httpapi_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/answer"
	"github.com/fyrsmithlabs/reportd/internal/audio"
	"github.com/fyrsmithlabs/reportd/internal/blobcache"
	"github.com/fyrsmithlabs/reportd/internal/extraction"
	"github.com/fyrsmithlabs/reportd/internal/httpapi"
	"github.com/fyrsmithlabs/reportd/internal/ogimage"
	"github.com/fyrsmithlabs/reportd/internal/reports"
	"github.com/fyrsmithlabs/reportd/internal/triage"
)

type fakeExtractor struct{ err error }

func (f *fakeExtractor) Extract(ctx context.Context, docURL, text string) (extraction.Metadata, error) {
	if f.err != nil {
		return extraction.Metadata{}, f.err
	}
	return extraction.Metadata{Title: "Extracted", Source: "Src", Tags: []string{"Research"}}, nil
}

type fakeFetcher struct{ err error }

func (f *fakeFetcher) Text(ctx context.Context, pageURL string, maxChars int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "document text", nil
}

type fakeAnswerer struct{}

func (fakeAnswerer) Answer(ctx context.Context, req answer.Request) (answer.Response, error) {
	return answer.Response{Answer: "an answer", ContextSource: "semantic"}, nil
}

type fakeAudio struct{}

func (fakeAudio) Summarize(ctx context.Context, docURL, title, summaryHint string) (audio.Summary, error) {
	return audio.Summary{AudioURL: "http://localhost/blobs/audio/x.mp3", Script: "script"}, nil
}

type fakeSweeper struct{ err error }

func (f *fakeSweeper) Sweep(ctx context.Context) (triage.Outcome, error) {
	if f.err != nil {
		return triage.Outcome{}, f.err
	}
	return triage.Outcome{Query: "q", Scanned: 2}, nil
}

type fakeReportStore struct {
	list []reports.Report
	err  error
}

func (f *fakeReportStore) List(ctx context.Context) ([]reports.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeReportStore) Create(ctx context.Context, r reports.Report) (reports.Report, error) {
	if f.err != nil {
		return reports.Report{}, f.err
	}
	r.ID = 1001
	f.list = append(f.list, r)
	return r, nil
}

type fakeImages struct {
	image string
	err   error
}

func (f *fakeImages) Resolve(ctx context.Context, pageURL string) (string, error) {
	return f.image, f.err
}

func newTestServer(t *testing.T, deps httpapi.Deps, cfg httpapi.Config) *httptest.Server {
	t.Helper()

	srv, err := httpapi.NewServer(deps, zap.NewNop(), cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func defaultDeps(t *testing.T) httpapi.Deps {
	t.Helper()

	store, err := blobcache.NewFSStore(t.TempDir(), "http://localhost/blobs", zap.NewNop())
	require.NoError(t, err)

	return httpapi.Deps{
		Extractor: &fakeExtractor{},
		Fetcher:   &fakeFetcher{},
		Answerer:  fakeAnswerer{},
		Audio:     fakeAudio{},
		Sweeper:   &fakeSweeper{},
		Reports:   &fakeReportStore{},
		Images:    &fakeImages{image: "https://cdn.example.com/cover.png"},
		Uploads:   httpapi.NewUploadHandler(store, zap.NewNop()),
		BlobRoot:  store.Root(),
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSummarize(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/summarize", map[string]string{"url": "https://x.test/doc"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var meta extraction.Metadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	assert.Equal(t, "Extracted", meta.Title)
}

func TestSummarize_Validation(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/summarize", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummarize_UpstreamFailure(t *testing.T) {
	deps := defaultDeps(t)
	deps.Fetcher = &fakeFetcher{err: fmt.Errorf("fetch failed")}
	ts := newTestServer(t, deps, httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/summarize", map[string]string{"url": "https://x.test/doc"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"url":      "https://x.test/doc",
		"question": "what?",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body answer.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "an answer", body.Answer)
}

func TestChat_Validation(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{"url": "https://x.test"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/chat", map[string]string{"question": "q"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAudio(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/audio", map[string]string{
		"url":   "https://x.test/doc",
		"title": "Report",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body httpapi.AudioResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "http://localhost/blobs/audio/x.mp3", body.AudioContent)
	assert.Equal(t, "script", body.Script)
}

func TestAudio_Validation(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/audio", map[string]string{"url": "https://x.test"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDiscover(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp, err := http.Get(ts.URL + "/api/discover")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2 := postJSON(t, ts.URL+"/api/discover", nil)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestDiscover_Failure(t *testing.T) {
	deps := defaultDeps(t)
	deps.Sweeper = &fakeSweeper{err: fmt.Errorf("search down")}
	ts := newTestServer(t, deps, httpapi.Config{})

	resp, err := http.Get(ts.URL + "/api/discover")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestReports_ListAndCreate(t *testing.T) {
	deps := defaultDeps(t)
	store := &fakeReportStore{}
	deps.Reports = store
	ts := newTestServer(t, deps, httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/reports", map[string]any{
		"title":  "Manual Report",
		"source": "Analyst",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var created httpapi.CreateReportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, created.Success)
	assert.Equal(t, 1001, created.ID)
	assert.Equal(t, "Manual", store.list[0].AddedBy)

	listResp, err := http.Get(ts.URL + "/api/reports")
	require.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	var list httpapi.ListReportsResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	assert.Equal(t, 1, list.Count)
}

func TestReports_CreateValidation(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/reports", map[string]string{"title": "No source"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReports_StoreUnavailable(t *testing.T) {
	deps := defaultDeps(t)
	deps.Reports = &fakeReportStore{err: fmt.Errorf("%w: HTTP 500", reports.ErrStoreUnavailable)}
	ts := newTestServer(t, deps, httpapi.Config{})

	resp, err := http.Get(ts.URL + "/api/reports")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestUpload(t *testing.T) {
	deps := defaultDeps(t)
	ts := newTestServer(t, deps, httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/upload", map[string]string{
		"filename":      "report.pdf",
		"base64Content": base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 data")),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body httpapi.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Contains(t, body.URL, "/blobs/reports/uploaded_")
	assert.True(t, strings.HasSuffix(body.URL, ".pdf"))
}

func TestUpload_Validation(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	// Missing fields.
	resp := postJSON(t, ts.URL+"/api/upload", map[string]string{"filename": "x.pdf"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Disallowed extension.
	resp = postJSON(t, ts.URL+"/api/upload", map[string]string{
		"filename":      "script.sh",
		"base64Content": base64.StdEncoding.EncodeToString([]byte("#!/bin/sh")),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Invalid base64.
	resp = postJSON(t, ts.URL+"/api/upload", map[string]string{
		"filename":      "x.pdf",
		"base64Content": "not-base64!!!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOGImage(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(ts.URL + "/api/og-image?url=https://x.test/page")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://cdn.example.com/cover.png", resp.Header.Get("Location"))
}

func TestOGImage_NotFound(t *testing.T) {
	deps := defaultDeps(t)
	deps.Images = &fakeImages{err: ogimage.ErrNoImage}
	ts := newTestServer(t, deps, httpapi.Config{})

	resp, err := http.Get(ts.URL + "/api/og-image?url=https://x.test/page")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOGImage_MissingParam(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{})

	resp, err := http.Get(ts.URL + "/api/og-image")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKeyGate(t *testing.T) {
	ts := newTestServer(t, defaultDeps(t), httpapi.Config{APIKey: "secret-key"})

	// Mutating endpoint without the key is rejected.
	resp := postJSON(t, ts.URL+"/api/reports", map[string]string{"title": "T", "source": "S"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With the key it passes.
	payload, _ := json.Marshal(map[string]string{"title": "T", "source": "S"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/reports", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", "secret-key")

	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)

	// Read endpoints stay open.
	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestUnconfiguredDependenciesReturn500(t *testing.T) {
	ts := newTestServer(t, httpapi.Deps{}, httpapi.Config{})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{"url": "https://x", "question": "q"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/audio", map[string]string{"url": "https://x", "title": "t"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	listResp, err := http.Get(ts.URL + "/api/reports")
	require.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, listResp.StatusCode)
}
