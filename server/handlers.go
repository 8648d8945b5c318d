package server

// HTTP handler methods for CurioServer:
// - Item lookup (HandleItem)
// - Search over the document index (HandleSearch)
// - Batch ingest enqueue (HandleIngest)
// - Async job inspection (HandleJobs, HandleJob)
// - Dead letter inspection (HandleDeadLetters)
// - Store statistics (HandleStats)
// - Health checks (HandleHealth)
// - WebSocket connections (HandleWebSocket)

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/curio/filter"
	"github.com/teranos/curio/ingest"
	"github.com/teranos/curio/item"
	"github.com/teranos/curio/pulse/async"
	"github.com/teranos/curio/sym"
	"github.com/teranos/curio/version"
)

const (
	// Default and max limits for listing queries
	defaultListLimit = 50
	maxListLimit     = 200
)

// HandleWebSocket upgrades the connection and attaches the client to the hub
func (s *CurioServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		server:  s,
		conn:    conn,
		sendMsg: make(chan interface{}, ClientQueueSize),
		id:      fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano()),
	}

	// Send version info BEFORE starting writePump (avoid concurrent writes)
	versionInfo := version.Get()
	versionMsg := map[string]interface{}{
		"type":       "version",
		"version":    versionInfo.Version,
		"commit":     versionInfo.Short(),
		"build_time": versionInfo.BuildTime,
	}
	if err := conn.WriteJSON(versionMsg); err != nil {
		s.logger.Debugw("Failed to send version info",
			"client_id", client.id,
			"error", err,
		)
	}

	s.register <- client

	// Send active jobs on connection (so a hard refresh shows current jobs)
	if s.daemon != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sendInitialJobsToClient(client)
		}()
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
}

// sendInitialJobsToClient sends active jobs to a newly connected client.
// Waits briefly for registration to complete.
func (s *CurioServer) sendInitialJobsToClient(client *Client) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-s.ctx.Done():
		return
	}

	jobs, err := s.daemon.GetQueue().ListActiveJobs(defaultListLimit)
	if err != nil {
		s.logger.Debugw("Failed to load active jobs for client",
			"client_id", client.id,
			"error", err,
		)
		return
	}

	for _, job := range jobs {
		client.sendJSON(JobUpdateMessage{
			Type: "job_update",
			Job:  job,
			Metadata: map[string]interface{}{
				"timestamp": time.Now().Unix(),
				"initial":   true,
			},
		})
	}
}

// HandleHealth reports server liveness and store reachability
func (s *CurioServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	itemCount, _, err := s.items.Stats(r.Context())
	healthy := err == nil

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"healthy": healthy,
		"items":   itemCount,
		"state":   stateString(s.getState()),
		"version": version.Get().Version,
	})
}

// HandleItem handles GET /api/items/{id}
func (s *CurioServer) HandleItem(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	pathParts := extractPathParts(r.URL.Path, "/api/items/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing item ID")
		return
	}

	it, err := s.items.Get(r.Context(), item.ID(pathParts[0]))
	if err != nil {
		handleError(w, s.logger, err, "failed to get item")
		return
	}

	writeJSON(w, http.StatusOK, it)
}

// HandleSearch handles GET /api/search. Query parameters map onto filter
// criteria: q, min_price, max_price, currency, location, category, state
// (comma-separated). All given predicates must match.
func (s *CurioServer) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	criteria, err := searchCriteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := parseIntQueryParam(r, "limit", defaultListLimit, 1, maxListLimit)

	docs, err := s.documents.Search(r.Context(), criteria, limit)
	if err != nil {
		handleError(w, s.logger, err, "search failed")
		return
	}

	s.logger.Debugw(fmt.Sprintf("%s Search served", sym.Search),
		"results", len(docs),
		"remote", r.RemoteAddr,
	)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// searchCriteriaFromQuery builds a conjunction from the request's query
// parameters. No parameters means match-all.
func searchCriteriaFromQuery(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	var children []filter.Criteria

	if term := strings.TrimSpace(q.Get("q")); term != "" {
		children = append(children, filter.Keyword{Term: term})
	}

	minRaw, maxRaw := q.Get("min_price"), q.Get("max_price")
	if minRaw != "" || maxRaw != "" || q.Get("currency") != "" {
		pr := filter.PriceRange{Currency: q.Get("currency")}
		if minRaw != "" {
			v, err := strconv.ParseInt(minRaw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid min_price %q: must be an integer in minor units", minRaw)
			}
			pr.Min = &v
		}
		if maxRaw != "" {
			v, err := strconv.ParseInt(maxRaw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid max_price %q: must be an integer in minor units", maxRaw)
			}
			pr.Max = &v
		}
		children = append(children, pr)
	}

	if loc := q.Get("location"); loc != "" {
		children = append(children, filter.LocationIs{Location: loc})
	}
	if cat := q.Get("category"); cat != "" {
		children = append(children, filter.CategoryIs{Category: cat})
	}

	if states := q.Get("state"); states != "" {
		var in filter.StateIn
		for _, raw := range strings.Split(states, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if !item.IsValidState(raw) {
				return nil, fmt.Errorf("invalid state %q", raw)
			}
			in.States = append(in.States, item.State(raw))
		}
		children = append(children, in)
	}

	if len(children) == 0 {
		return nil, nil // match everything
	}
	return filter.And{Children: children}, nil
}

// ingestRequest is the POST /api/ingest body
type ingestRequest struct {
	Source   string              `json:"source"`
	Listings []ingest.RawListing `json:"listings"`
}

// HandleIngest handles POST /api/ingest: validates the batch and enqueues
// it for the worker pool. Returns 202 with the created job, or 409 when an
// identical batch from the same source is already in flight.
func (s *CurioServer) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if s.daemon == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingest pipeline not available")
		return
	}

	var req ingestRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "Missing source")
		return
	}
	if len(req.Listings) == 0 {
		writeError(w, http.StatusBadRequest, "Empty batch")
		return
	}
	if max := s.cfg.Ingest.MaxBatchSize; len(req.Listings) > max {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Batch of %d listings exceeds limit of %d", len(req.Listings), max))
		return
	}

	queue := s.daemon.GetQueue()

	// One in-flight batch per source keeps redeliveries from piling up
	existing, err := queue.FindActiveJobBySourceAndHandler(req.Source, async.HandlerNameBatch)
	if err != nil {
		handleError(w, s.logger, err, "failed to check active jobs")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  "A batch from this source is already in flight",
			"job_id": existing.ID,
			"status": existing.Status,
		})
		return
	}

	job, err := async.NewBatchJob(req.Source, req.Listings)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := queue.Enqueue(job); err != nil {
		handleError(w, s.logger, err, "failed to enqueue batch")
		return
	}

	s.logger.Infow(fmt.Sprintf("%s Batch enqueued", sym.IX),
		"job_id", shortID(job.ID),
		"source", req.Source,
		"listings", len(req.Listings),
	)

	writeJSON(w, http.StatusAccepted, job)
}

// HandleJobs handles GET /api/jobs: lists active, completed, and failed jobs
func (s *CurioServer) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if s.daemon == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingest pipeline not available")
		return
	}

	queue := s.daemon.GetQueue()
	limit := parseIntQueryParam(r, "limit", defaultListLimit, 1, maxListLimit)

	var allJobs []*async.Job

	activeJobs, err := queue.ListActiveJobs(limit)
	if err != nil {
		s.logger.Warnw("Failed to list active jobs", "error", err)
	} else {
		allJobs = append(allJobs, activeJobs...)
	}

	completedJobs, err := queue.ListJobs(jobStatusPtr(async.JobStatusCompleted), limit)
	if err != nil {
		s.logger.Warnw("Failed to list completed jobs", "error", err)
	} else {
		allJobs = append(allJobs, completedJobs...)
	}

	failedJobs, err := queue.ListJobs(jobStatusPtr(async.JobStatusFailed), limit)
	if err != nil {
		s.logger.Warnw("Failed to list failed jobs", "error", err)
	} else {
		allJobs = append(allJobs, failedJobs...)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  allJobs,
		"count": len(allJobs),
	})
}

// HandleJob handles GET /api/jobs/{id}
func (s *CurioServer) HandleJob(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if s.daemon == nil {
		writeError(w, http.StatusServiceUnavailable, "Ingest pipeline not available")
		return
	}

	pathParts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	job, err := s.daemon.GetQueue().GetJob(pathParts[0])
	if err != nil {
		handleError(w, s.logger, err, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// HandleDeadLetters handles GET /api/dead-letters: newest-first listing of
// payloads that could not be materialized.
func (s *CurioServer) HandleDeadLetters(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit := parseIntQueryParam(r, "limit", defaultListLimit, 1, maxListLimit)

	letters, err := s.deadLetters.List(r.Context(), limit)
	if err != nil {
		handleError(w, s.logger, err, "failed to list dead letters")
		return
	}

	total, err := s.deadLetters.Count(r.Context())
	if err != nil {
		handleError(w, s.logger, err, "failed to count dead letters")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dead_letters": letters,
		"count":        len(letters),
		"total":        total,
	})
}

// HandleStats handles GET /api/stats: item counts by state plus index and
// dead-letter totals.
func (s *CurioServer) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	itemCount, byState, err := s.items.Stats(r.Context())
	if err != nil {
		handleError(w, s.logger, err, "failed to get item stats")
		return
	}

	docCount, err := s.documents.Count(r.Context())
	if err != nil {
		handleError(w, s.logger, err, "failed to count documents")
		return
	}

	deadCount, err := s.deadLetters.Count(r.Context())
	if err != nil {
		handleError(w, s.logger, err, "failed to count dead letters")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":        itemCount,
		"by_state":     byState,
		"documents":    docCount,
		"dead_letters": deadCount,
	})
}

// jobStatusPtr returns a pointer to the given status for list filters
func jobStatusPtr(status async.JobStatus) *async.JobStatus {
	return &status
}
