package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"vench/internal/api"
	"vench/internal/config"
	"vench/internal/jobs"
	"vench/internal/logging"
)

// maxFeedbackBody bounds the JSON feedback payload.
const maxFeedbackBody = 64 << 10

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	svc    *api.Service

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, svc *api.Service, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		svc:    svc,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/diaries", s.handleCreateDiary)
	mux.HandleFunc("POST /api/feedback", s.handleCreateFeedback)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{ref}", s.handleJob)
	mux.HandleFunc("POST /api/jobs/{ref}/retry", s.handleRetry)
	mux.HandleFunc("GET /api/stats/emotions", s.handleEmotionStats)
	mux.HandleFunc("GET /api/stats/keywords", s.handleKeywordStats)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return requestIDMiddleware(s.accessLog(authMiddleware(token, mux)))
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleCreateDiary(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.DefaultMaxUploadBytes+1<<20)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "expected multipart/form-data with an audio field")
		return
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
			return
		}
		if part.FormName() != "audio" {
			_ = part.Close()
			continue
		}
		job, err := s.svc.CreateDiary(r.Context(), api.DiaryUpload{
			FileName:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
		})
		_ = part.Close()
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusAccepted, api.JobResponse{Job: job})
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "audio field is required")
}

func (s *apiServer) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req api.FeedbackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFeedbackBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid feedback body: %v", err))
		return
	}
	job, err := s.svc.CreateFeedback(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, api.JobResponse{Job: job})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Job(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	req, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.svc.List(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func parseListQuery(r *http.Request) (api.ListRequest, error) {
	query := r.URL.Query()
	var req api.ListRequest
	for _, value := range query["kind"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			req.Kinds = append(req.Kinds, jobs.Kind(trimmed))
		}
	}
	for _, value := range query["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := jobs.ParseStatus(value)
		if !ok {
			return req, fmt.Errorf("unknown status %q", value)
		}
		req.Statuses = append(req.Statuses, status)
	}
	if value := strings.TrimSpace(query.Get("since")); value != "" {
		since, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return req, fmt.Errorf("since must be RFC3339: %v", err)
		}
		req.Since = since
	}
	var err error
	if req.Limit, err = intParam(query.Get("limit")); err != nil {
		return req, fmt.Errorf("limit: %v", err)
	}
	if req.Offset, err = intParam(query.Get("offset")); err != nil {
		return req, fmt.Errorf("offset: %v", err)
	}
	return req, nil
}

func intParam(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Retry(r.Context(), r.PathValue("ref"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, api.JobResponse{Job: job})
}

func (s *apiServer) handleEmotionStats(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("days: %v", err))
		return
	}
	stats, err := s.svc.EmotionStats(r.Context(), days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, stats)
}

func (s *apiServer) handleKeywordStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days, err := intParam(query.Get("days"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("days: %v", err))
		return
	}
	limit, err := intParam(query.Get("limit"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("limit: %v", err))
		return
	}
	stats, err := s.svc.KeywordStats(r.Context(), days, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, stats)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	checkLLM := r.URL.Query().Get("llm") == "1" || strings.EqualFold(r.URL.Query().Get("llm"), "true")
	s.writeJSON(w, r, http.StatusOK, s.daemon.Status(r.Context(), checkLLM))
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, api.ErrInvalidRequest):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &maxBytes):
		s.writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, api.ErrConflict):
		s.writeError(w, r, http.StatusConflict, err.Error())
	default:
		logging.WithContext(r.Context(), s.logger).Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_error"),
		)
		s.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.WithContext(r.Context(), s.logger).Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, api.ErrorResponse{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *apiServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.WithContext(r.Context(), s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)),
		)
	})
}
