package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/curio/config"
	"github.com/teranos/curio/ingest"
	"github.com/teranos/curio/item"
	curiotesting "github.com/teranos/curio/internal/testing"
	"github.com/teranos/curio/pulse/async"
	"github.com/teranos/curio/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

// newTestServer builds a server over fresh in-memory stores with a worker
// pool that is constructed but not started, so enqueued jobs stay queued.
func newTestServer(t *testing.T) *CurioServer {
	t.Helper()
	primary := curiotesting.CreatePrimaryTestDB(t)
	search := curiotesting.CreateSearchTestDB(t)

	registry := async.NewHandlerRegistry()
	daemon := async.NewWorkerPool(context.Background(), primary, async.DefaultWorkerPoolConfig(), registry, zap.NewNop().Sugar())

	s := New(primary, search, testConfig(t), daemon, zap.NewNop().Sugar())
	t.Cleanup(func() { s.cancel() })
	return s
}

func seedItem(t *testing.T, s *CurioServer, externalID, title string, priceAmount int64) *item.Item {
	t.Helper()
	observed := time.Now().UTC()
	it := &item.Item{
		ID:          item.ComputeID("craigslist", externalID),
		Source:      "craigslist",
		ExternalID:  externalID,
		Title:       title,
		Description: title + " in good condition",
		Price:       &item.Price{Amount: priceAmount, Currency: "EUR"},
		Location:    "berlin",
		Category:    "furniture",
		State:       item.StateActive,
		FirstSeenAt: observed,
		LastSeenAt:  observed,
	}
	it.Version = item.ComputeVersion(observed, it)

	applied, err := s.items.Upsert(context.Background(), it)
	require.NoError(t, err)
	require.True(t, applied)

	indexed, err := s.documents.Index(context.Background(), it)
	require.NoError(t, err)
	require.True(t, indexed)
	return it
}

func doRequest(s *CurioServer, method, target string, body []byte) *httptest.ResponseRecorder {
	mux := s.setupHTTPRoutes()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleItem(t *testing.T) {
	s := newTestServer(t)
	it := seedItem(t, s, "post-100", "vintage desk lamp", 4500)

	rec := doRequest(s, http.MethodGet, "/api/items/"+string(it.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got item.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, it.ID, got.ID)
	assert.Equal(t, "vintage desk lamp", got.Title)
	assert.Equal(t, int64(4500), got.Price.Amount)
}

func TestHandleItemNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/items/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleItemRejectsPost(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/items/nope", []byte("{}"))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t)
	seedItem(t, s, "post-1", "vintage desk lamp", 4500)
	seedItem(t, s, "post-2", "mountain bike", 25000)

	t.Run("keyword", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/search?q=lamp", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("price range", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/search?min_price=10000&currency=EUR", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Count     int `json:"count"`
			Documents []struct {
				Title string `json:"title"`
			} `json:"documents"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "mountain bike", resp.Documents[0].Title)
	})

	t.Run("no params matches all", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/search", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("invalid price", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/search?min_price=cheap", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid state", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/search?state=vanished", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func ingestBody(t *testing.T, source string, n int) []byte {
	t.Helper()
	listings := make([]ingest.RawListing, n)
	for i := range listings {
		listings[i] = ingest.RawListing{
			Source:     source,
			ExternalID: fmt.Sprintf("post-%d", i),
			RawFields: map[string]any{
				"title":       fmt.Sprintf("item %d", i),
				"description": "fresh from the scraper",
			},
			ObservedAt: time.Now().UTC(),
		}
	}
	body, err := json.Marshal(ingestRequest{Source: source, Listings: listings})
	require.NoError(t, err)
	return body
}

func TestHandleIngest(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "craigslist", 3))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job async.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, async.JobStatusQueued, job.Status)
	assert.Equal(t, async.HandlerNameBatch, job.HandlerName)
	assert.Equal(t, 3, job.Progress.Total)

	stored, err := s.daemon.GetQueue().GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "craigslist", stored.Source)
}

func TestHandleIngestRejectsDuplicateSource(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "craigslist", 2))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "craigslist", 2))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A different source is not blocked
	rec = doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "ebay", 2))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleIngestValidation(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing source", func(t *testing.T) {
		body, err := json.Marshal(ingestRequest{Listings: []ingest.RawListing{{}}})
		require.NoError(t, err)
		rec := doRequest(s, http.MethodPost, "/api/ingest", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty batch", func(t *testing.T) {
		body, err := json.Marshal(ingestRequest{Source: "craigslist"})
		require.NoError(t, err)
		rec := doRequest(s, http.MethodPost, "/api/ingest", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized batch", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "craigslist", s.cfg.Ingest.MaxBatchSize+1))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doRequest(s, http.MethodPost, "/api/ingest", []byte("{not json"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleJob(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "craigslist", 1))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job async.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	rec = doRequest(s, http.MethodGet, "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got async.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.ID)

	rec = doRequest(s, http.MethodGet, "/api/jobs/unknown-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleJobs(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "craigslist", 1))
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = doRequest(s, http.MethodPost, "/api/ingest", ingestBody(t, "ebay", 1))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestHandleDeadLetters(t *testing.T) {
	s := newTestServer(t)

	_, err := s.deadLetters.Add(context.Background(), &store.DeadLetter{
		ItemID:   item.ComputeID("craigslist", "post-broken"),
		Reason:   store.ReasonValidation,
		Detail:   "missing title",
		Payload:  `{"source":"craigslist"}`,
		Attempts: 1,
	})
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/api/dead-letters", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 1, resp.Total)
}

func TestHandleStats(t *testing.T) {
	s := newTestServer(t)
	seedItem(t, s, "post-1", "vintage desk lamp", 4500)

	rec := doRequest(s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items       int            `json:"items"`
		ByState     map[string]int `json:"by_state"`
		Documents   int            `json:"documents"`
		DeadLetters int            `json:"dead_letters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Items)
	assert.Equal(t, 1, resp.ByState["active"])
	assert.Equal(t, 1, resp.Documents)
	assert.Equal(t, 0, resp.DeadLetters)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Healthy bool   `json:"healthy"`
		State   string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Healthy)
	assert.Equal(t, "running", resp.State)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	mux := s.setupHTTPRoutes()
	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
