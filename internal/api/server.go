// Package api exposes enhancement sessions over HTTP. The API owns session
// records and hands the actual pixel work to the queue; the worker reports
// back through the session store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/glowpix/glow/internal/domain"
	"github.com/glowpix/glow/internal/enhance"
	"github.com/glowpix/glow/internal/id"
	"github.com/glowpix/glow/internal/pipeline"
	"github.com/glowpix/glow/internal/queue"
	"github.com/glowpix/glow/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger                *log.Logger
	queueClient           queueEnqueuer
	sessions              store.SessionStore
	storage               objectStorage
	presignTTL            time.Duration
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	metrics               *metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
}

type Options struct {
	PresignTTL            time.Duration
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
}

type queueEnqueuer interface {
	EnqueueEnhanceImage(ctx context.Context, payload queue.EnhanceImagePayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	PresignedGetURL(ctx context.Context, objectKey, downloadName string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

func NewServer(logger *log.Logger, queueClient queueEnqueuer, sessions store.SessionStore, storage objectStorage, opts Options) *Server {
	presignTTL := opts.PresignTTL
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	if storage == nil {
		storage = unavailableObjectStorage{}
	}
	userIDHeader := opts.RateLimitUserIDHeader
	if userIDHeader == "" {
		userIDHeader = "X-Glow-User"
	}

	s := &Server{
		logger:                logger,
		queueClient:           queueClient,
		sessions:              sessions,
		storage:               storage,
		presignTTL:            presignTTL,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: userIDHeader,
		metrics:               newMetrics(),
		tracer:                otel.Tracer("glow/api"),
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignedPutURL(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) PresignedGetURL(context.Context, string, string, time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) ObjectExists(context.Context, string) (bool, error) {
	return false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleResetSession)
	s.mux.HandleFunc("POST /v1/sessions/{id}/enhance", s.handleEnhance)
	s.mux.HandleFunc("PATCH /v1/sessions/{id}/settings", s.handleUpdateSettings)
	s.mux.HandleFunc("PUT /v1/sessions/{id}/comparison", s.handleComparison)
	s.mux.HandleFunc("GET /v1/sessions/{id}/result", s.handleResult)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	sessionID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	objectKey := strings.TrimSpace(req.ObjectKey)
	uploadState := "not_required"
	presignedPutURL := ""

	if sourceType == domain.SourceTypeS3Presigned {
		objectKey = fmt.Sprintf("uploads/%s/source", sessionID)
		url, err := s.storage.PresignedPutURL(r.Context(), objectKey, s.presignTTL)
		if err != nil {
			s.logger.Printf("generate presigned url failed for session %s: %v", sessionID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL"})
			return
		}
		presignedPutURL = url
		uploadState = "ready"
	}

	sess := domain.Session{
		ID:              sessionID,
		Status:          domain.SessionStatusCreated,
		SourceType:      sourceType,
		WebhookURL:      req.WebhookURL,
		ObjectKey:       objectKey,
		Settings:        req.ResolvedSettings(),
		ComparisonRatio: domain.DefaultComparisonRatio,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.sessions.Create(r.Context(), sess); err != nil {
		s.logger.Printf("create session failed for session %s: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
		"settings":   sess.Settings,
		"upload": map[string]string{
			"object_key":          sess.ObjectKey,
			"presigned_put_url":   presignedPutURL,
			"presigned_url_state": uploadState,
		},
		"enhance_url": fmt.Sprintf("/v1/sessions/%s/enhance", sess.ID),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionDocument(sess))
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	switch sess.Status {
	case domain.SessionStatusQueued, domain.SessionStatusProcessing:
		// Re-trigger while a run is in flight has no effect.
		writeJSON(w, http.StatusConflict, map[string]string{"error": "enhancement already in progress"})
		return
	case domain.SessionStatusEnhanced:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "result already present, update settings first"})
		return
	}

	if err := s.verifySourceExists(r.Context(), sess); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	payload := queue.EnhanceImagePayload{
		SessionID:   sess.ID,
		SourceType:  sess.SourceType,
		WebhookURL:  sess.WebhookURL,
		ObjectKey:   sess.ObjectKey,
		Settings:    sess.Settings,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueEnhanceImage(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed for session %s: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue enhancement"})
		return
	}
	s.metrics.sessionsEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.sessions.UpdateStatus(r.Context(), sess.ID, domain.SessionStatusQueued); err != nil {
		s.logger.Printf("update status failed for session %s: %v", sess.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id":  sess.ID,
		"status":      domain.SessionStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"state":       taskInfo.State.String(),
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if sess.Status == domain.SessionStatusQueued || sess.Status == domain.SessionStatusProcessing {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "enhancement already in progress"})
		return
	}

	var settings enhance.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Leaving the enhanced view to tweak parameters is the editing state;
	// everywhere else the status is unaffected by a settings write.
	status := sess.Status
	if sess.Status == domain.SessionStatusEnhanced {
		status = domain.SessionStatusEditing
	}

	updated, err := s.sessions.UpdateSettings(r.Context(), sess.ID, settings, status)
	if err != nil {
		s.logger.Printf("update settings failed for session %s: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update settings"})
		return
	}

	writeJSON(w, http.StatusOK, sessionDocument(updated))
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if sess.Status != domain.SessionStatusEnhanced {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "result not ready"})
		return
	}

	var body struct {
		Ratio float64 `json:"ratio"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ratio := body.Ratio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 100 {
		ratio = 100
	}

	updated, err := s.sessions.UpdateComparison(r.Context(), sess.ID, ratio)
	if err != nil {
		s.logger.Printf("update comparison failed for session %s: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update comparison ratio"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":       updated.ID,
		"comparison_ratio": updated.ComparisonRatio,
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	if sess.Status != domain.SessionStatusEnhanced || sess.ResultKey == "" {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "result not ready"})
		return
	}

	doc := map[string]any{
		"session_id": sess.ID,
		"result_key": sess.ResultKey,
		"filename":   pipeline.ResultFilename,
	}

	if sess.SourceType != domain.SourceTypeLocalFile {
		url, err := s.storage.PresignedGetURL(r.Context(), sess.ResultKey, pipeline.ResultFilename, s.presignTTL)
		if err != nil {
			s.logger.Printf("presign result failed for session %s: %v", sess.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate download URL"})
			return
		}
		doc["download_url"] = url
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	reset, err := s.sessions.Reset(r.Context(), sess.ID)
	if err != nil {
		s.logger.Printf("reset failed for session %s: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset session"})
		return
	}

	writeJSON(w, http.StatusOK, sessionDocument(reset))
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	sessionID := r.PathValue("id")
	if strings.TrimSpace(sessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return domain.Session{}, false
	}

	sess, ok, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		s.logger.Printf("fetch session failed for session %s: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
		return domain.Session{}, false
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return domain.Session{}, false
	}
	return sess, true
}

func (s *Server) verifySourceExists(ctx context.Context, sess domain.Session) error {
	switch sess.SourceType {
	case domain.SourceTypeLocalFile:
		if _, err := os.Stat(sess.ObjectKey); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("source image is missing: %s", sess.ObjectKey)
			}
			return fmt.Errorf("source image check failed: %w", err)
		}
		return nil
	default:
		exists, err := s.storage.ObjectExists(ctx, sess.ObjectKey)
		if err != nil {
			return fmt.Errorf("source image check failed: %w", err)
		}
		if !exists {
			return fmt.Errorf("source image is missing: %s", sess.ObjectKey)
		}
		return nil
	}
}

func sessionDocument(sess domain.Session) map[string]any {
	return map[string]any{
		"session_id":       sess.ID,
		"status":           sess.Status,
		"source_type":      sess.SourceType,
		"object_key":       sess.ObjectKey,
		"result_key":       sess.ResultKey,
		"settings":         sess.Settings,
		"comparison_ratio": sess.ComparisonRatio,
		"created_at":       sess.CreatedAt,
		"updated_at":       sess.UpdatedAt,
	}
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
