package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/feed"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type crawlRequest struct {
	PageURL  string `json:"page_url" validate:"required,url"`
	MaxPosts int    `json:"max_posts" validate:"omitempty,gte=1,lte=100"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	token, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, feed.ErrUnauthorized) {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("login failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == "" {
		s.writeError(w, http.StatusUnauthorized, "no active session")
		return
	}
	revoked, err := s.sessions.Revoke(r.Context(), principal)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"revoked": revoked})
}

func (s *Server) decodeCrawlRequest(r *http.Request) (feed.CrawlRequest, error) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return feed.CrawlRequest{}, errors.New("invalid JSON")
	}
	if err := s.validate.Struct(req); err != nil {
		return feed.CrawlRequest{}, fmt.Errorf("page_url must be a valid URL and max_posts between 1 and %d", maxListLimit)
	}
	return feed.CrawlRequest{
		PageURL:   req.PageURL,
		MaxPosts:  req.MaxPosts,
		Principal: PrincipalFromContext(r.Context()),
	}, nil
}

func (s *Server) crawlSync(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeCrawlRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.blocked.IsBlockedURL(req.PageURL) {
		s.writeError(w, http.StatusUnprocessableEntity, "page host is blocked")
		return
	}
	if s.admission != nil && !s.admission.AllowSubmit(req.Principal) {
		s.writeError(w, http.StatusTooManyRequests, "crawl budget exhausted, retry later")
		return
	}

	summary, err := s.pipeline.Run(r.Context(), req, nil)
	if err != nil {
		s.logger.Error("sync crawl failed", zap.String("page_url", req.PageURL), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "crawl failed: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) crawlAsync(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeCrawlRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.blocked.IsBlockedURL(req.PageURL) {
		s.writeError(w, http.StatusUnprocessableEntity, "page host is blocked")
		return
	}
	if s.admission != nil && !s.admission.AllowSubmit(req.Principal) {
		s.writeError(w, http.StatusTooManyRequests, "crawl budget exhausted, retry later")
		return
	}

	jobID, err := s.enqueueJob(r, req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(feed.JobPending),
	})
}

func (s *Server) enqueueJob(r *http.Request, req feed.CrawlRequest) (string, error) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := feed.Job{
		ID:        jobID,
		Status:    feed.JobPending,
		Submitted: now,
		Request:   req,
	}
	if err := s.jobStore.CreateJob(r.Context(), job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item := feed.QueueItem{
		JobID:     jobID,
		Request:   req,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, nil
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) crawlerStatus(w http.ResponseWriter, r *http.Request) {
	cached, err := s.cache.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	status := map[string]any{
		"status":       "ok",
		"cached_posts": cached,
	}
	if s.dispatcher != nil {
		status["queued_jobs"] = s.dispatcher.Depth()
	}
	if counts, err := s.posts.CountByCategory(r.Context()); err == nil {
		status["stored_posts"] = counts
	}
	s.writeJSON(w, http.StatusOK, status)
}

// listParams reads category/limit/offset from the query string, clamping
// limit to [1, 100] with a default of 10.
func listParams(r *http.Request) (feed.Category, int, int, error) {
	q := r.URL.Query()

	category := feed.Category(q.Get("category"))
	if category != "" && !category.Valid() {
		return "", 0, 0, fmt.Errorf("unknown category %q", category)
	}

	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			return "", 0, 0, fmt.Errorf("limit must be an integer between 1 and %d", maxListLimit)
		}
		limit = n
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return "", 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = n
	}
	return category, limit, offset, nil
}

func (s *Server) listCachedPosts(w http.ResponseWriter, r *http.Request) {
	category, limit, offset, err := listParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	posts, err := s.cache.Get(r.Context(), category, limit, offset)
	if err != nil {
		s.logger.Error("cache read failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	if posts == nil {
		posts = []feed.Post{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"posts": posts, "count": len(posts)})
}

func (s *Server) listStoredPosts(w http.ResponseWriter, r *http.Request) {
	category, limit, offset, err := listParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	posts, err := s.posts.List(r.Context(), category, limit, offset)
	if err != nil {
		s.logger.Error("database read failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	if posts == nil {
		posts = []feed.Post{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"posts": posts, "count": len(posts)})
}

func (s *Server) countCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := s.posts.CountByCategory(r.Context())
	if err != nil {
		s.logger.Error("category count failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"categories": counts, "total": total})
}
