package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vidsaver/vidsaver/errors"
	"github.com/vidsaver/vidsaver/queue"
)

func errInvalidURL(msg string) error {
	return errors.NewInvalidRequestError("%s", msg)
}

const (
	// Default and max limits for job listing queries
	defaultListLimit = 50
	maxListLimit     = 200
)

// submitRequest is the body of POST /api/v1/downloads
type submitRequest struct {
	URL   string `json:"url"`
	Owner string `json:"owner,omitempty"`
}

// handleDownloads handles requests to /api/v1/downloads
// POST: Submit a URL for download
// GET:  List jobs, filtered by owner and/or status
func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSubmit validates a submission, runs it through the admission gate
// and persists it. The 201 response is only written after the insert has
// committed; a crash immediately after the response cannot lose the job.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	if err := s.validateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner := req.Owner
	if owner == "" {
		owner = clientAddr(r)
	}

	if err := s.gate.Allow(owner); err != nil {
		s.logger.Warnw("Submission rejected by admission gate",
			"owner", owner,
			"url", req.URL)
		writeDomainError(w, err)
		return
	}

	job := queue.NewJob(req.URL, owner)
	if err := s.store.CreateJob(job); err != nil {
		s.logger.Errorw("Failed to persist submission", "error", err, "url", req.URL)
		writeError(w, http.StatusInternalServerError, "Failed to persist download job")
		return
	}

	// Persisted and durable; the wake is a latency optimization only.
	s.pool.Wake()

	s.logger.Infow("Download queued",
		"job_id", shortID(job.ID),
		"owner", owner,
		"url", req.URL)
	writeJSON(w, http.StatusCreated, newJobView(job))
}

// handleList lists jobs newest-first with optional owner/status filters
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := queue.ListFilter{
		Owner: r.URL.Query().Get("owner"),
		Limit: parseIntQueryParam(r, "limit", defaultListLimit, 1, maxListLimit),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		mapped := internalStatus(status)
		if !queue.IsValidStatus(string(mapped)) {
			writeError(w, http.StatusBadRequest, "Unknown status filter: "+status)
			return
		}
		filter.Status = mapped
	}

	jobs, err := s.store.ListJobs(filter)
	if err != nil {
		s.logger.Errorw("Failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list download jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  newJobViews(jobs),
		"count": len(jobs),
	})
}

// handleDownload handles requests to /api/v1/downloads/{id}
// GET: Get job status
// Sub-resource: POST /api/v1/downloads/{id}/retry
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/v1/downloads/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	jobID := pathParts[0]

	if len(pathParts) > 1 && pathParts[1] == "retry" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleRetry(w, r, jobID)
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := s.store.GetJob(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

// handleRetry re-queues a terminally failed job with a fresh attempt budget
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := s.store.RequeueFailed(jobID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.pool.Wake()

	job, err := s.store.GetJob(jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Infow("Job manually re-queued", "job_id", shortID(jobID))
	writeJSON(w, http.StatusOK, newJobView(job))
}

// handleHealth reports queue statistics and worker state
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		s.logger.Errorw("Failed to read queue stats", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	metrics := s.pool.GetSystemMetrics()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"queue":          stats,
		"system":         metrics,
	})
}

// validateURL rejects submissions before they ever reach the queue.
func (s *Server) validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errInvalidURL("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return errInvalidURL("url is not parseable")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errInvalidURL("url scheme must be http or https")
	}
	if parsed.Host == "" {
		return errInvalidURL("url has no host")
	}

	if len(s.config.AllowedDomains) > 0 {
		host := strings.ToLower(parsed.Hostname())
		allowed := false
		for _, domain := range s.config.AllowedDomains {
			domain = strings.ToLower(domain)
			if host == domain || strings.HasSuffix(host, "."+domain) {
				allowed = true
				break
			}
		}
		if !allowed {
			return errInvalidURL("url host is not in the allowed domains")
		}
	}
	return nil
}

// clientAddr returns the request's client IP, used as the default owner
// when submissions don't carry one.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
