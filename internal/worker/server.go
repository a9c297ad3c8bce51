// Package worker consumes enhancement tasks from the queue and drives the
// pipeline for each session.
package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/glowpix/glow/internal/config"
	"github.com/glowpix/glow/internal/domain"
	"github.com/glowpix/glow/internal/pipeline"
	"github.com/glowpix/glow/internal/queue"
	"github.com/glowpix/glow/internal/storage"
	"github.com/glowpix/glow/internal/store"
	"github.com/glowpix/glow/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger          *log.Logger
	server          *asynq.Server
	sem             chan struct{}
	localProcessor  *pipeline.Processor
	objectProcessor *pipeline.Processor
	webhookClient   webhookSender
	sessions        store.SessionStore
	usageStore      store.UsageStore
	metrics         *metrics
	tracer          trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	storageClient *storage.Client,
	webhookClient *webhook.Client,
	sessions store.SessionStore,
	usageStore store.UsageStore,
) (*Server, error) {
	if storageClient == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	localProcessor, err := pipeline.NewLocalProcessor(workerCfg.LocalOutputDir)
	if err != nil {
		return nil, fmt.Errorf("initialize local processor: %w", err)
	}
	localProcessor.SetPacing(workerCfg.MinProcessingTime)

	objectProcessor, err := pipeline.NewProcessor(
		pipeline.ObjectStoreFetcher{Storage: storageClient},
		pipeline.ObjectStoreEmitter{Storage: storageClient, OutputPrefix: "results"},
	)
	if err != nil {
		return nil, fmt.Errorf("initialize object-store processor: %w", err)
	}
	objectProcessor.SetPacing(workerCfg.MinProcessingTime)

	if usageStore == nil {
		if combined, ok := sessions.(store.UsageStore); ok {
			usageStore = combined
		}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:             make(chan struct{}, max(1, workerCfg.MaxActiveSessions)),
		localProcessor:  localProcessor,
		objectProcessor: objectProcessor,
		webhookClient:   webhookClient,
		sessions:        sessions,
		usageStore:      usageStore,
		metrics:         newMetrics(),
		tracer:          otel.Tracer("glow/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeEnhanceImage, s.handleEnhanceImage)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleEnhanceImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.SessionStatusFailed

	payload, err := queue.ParseEnhanceImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.enhance_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("session.id", payload.SessionID),
		attribute.String("session.source_type", payload.SourceType),
		attribute.Int("session.sharpness", payload.Settings.Sharpness),
	)
	defer span.End()
	defer func() {
		s.metrics.sessionDuration.WithLabelValues(payload.SourceType, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.sessionsTotal.WithLabelValues(payload.SourceType, outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeSessions.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeSessions.Dec()
	}()

	s.logger.Printf(
		"Enhancing... session_id=%s source_type=%s object_key=%s",
		payload.SessionID,
		payload.SourceType,
		payload.ObjectKey,
	)

	s.updateSessionStatus(ctx, payload.SessionID, domain.SessionStatusProcessing)

	request := pipeline.Request{
		SessionID:  payload.SessionID,
		SourceType: payload.SourceType,
		ObjectKey:  payload.ObjectKey,
		Settings:   payload.Settings,
	}

	var result pipeline.Result
	switch payload.SourceType {
	case domain.SourceTypeLocalFile:
		result, err = s.localProcessor.Process(ctx, request)
	default:
		result, err = s.objectProcessor.Process(ctx, request)
	}
	if err != nil {
		s.updateSessionStatus(ctx, payload.SessionID, domain.SessionStatusFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		s.dispatchWebhook(ctx, payload, "session.failed", map[string]any{
			"session_id":   payload.SessionID,
			"status":       domain.SessionStatusFailed,
			"source_type":  payload.SourceType,
			"object_key":   payload.ObjectKey,
			"requested_at": payload.RequestedAt,
			"failed_at":    time.Now().UTC(),
			"error":        err.Error(),
		})
		return fmt.Errorf("run pipeline: %w", err)
	}

	s.logger.Printf("Enhanced session_id=%s result=%s bytes=%d", payload.SessionID, result.Output.Path, result.Output.Bytes)
	s.storeResult(ctx, payload.SessionID, result.Output.Path)
	s.recordUsage(ctx, payload.SessionID, result, time.Since(startedAt))

	if err := s.dispatchWebhook(ctx, payload, "session.enhanced", map[string]any{
		"session_id":   payload.SessionID,
		"status":       domain.SessionStatusEnhanced,
		"source_type":  payload.SourceType,
		"object_key":   payload.ObjectKey,
		"result_key":   result.Output.Path,
		"settings":     payload.Settings,
		"requested_at": payload.RequestedAt,
		"enhanced_at":  time.Now().UTC(),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.SessionStatusEnhanced
	span.SetStatus(codes.Ok, "enhanced")
	return nil
}

func (s *Server) updateSessionStatus(ctx context.Context, sessionID, status string) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.UpdateStatus(ctx, sessionID, status); err != nil {
		s.logger.Printf("session status update failed session_id=%s status=%s err=%v", sessionID, status, err)
	}
}

func (s *Server) storeResult(ctx context.Context, sessionID, resultKey string) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.UpdateResult(ctx, sessionID, resultKey, domain.SessionStatusEnhanced); err != nil {
		s.logger.Printf("session result update failed session_id=%s err=%v", sessionID, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.EnhanceImagePayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed session_id=%s event=%s err=%v", payload.SessionID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}

func (s *Server) recordUsage(ctx context.Context, sessionID string, result pipeline.Result, computeDuration time.Duration) {
	if s.usageStore == nil {
		return
	}

	userID := "anonymous"
	if s.sessions != nil {
		sess, ok, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			s.logger.Printf("usage lookup failed session_id=%s err=%v", sessionID, err)
		} else if ok && strings.TrimSpace(sess.UserID) != "" {
			userID = sess.UserID
		}
	}

	pixelsProcessed := int64(result.Output.Width * result.Output.Height)

	computeTimeMS := computeDuration.Milliseconds()
	if computeTimeMS < 1 {
		computeTimeMS = 1
	}

	usage := domain.UsageLog{
		UserID:          userID,
		SessionID:       sessionID,
		PixelsProcessed: pixelsProcessed,
		OutputBytes:     int64(result.Output.Bytes),
		ComputeTimeMS:   computeTimeMS,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.usageStore.CreateUsageLog(ctx, usage); err != nil {
		s.logger.Printf("usage log write failed session_id=%s err=%v", sessionID, err)
		return
	}

	s.metrics.pixelsProcessedTotal.Add(float64(pixelsProcessed))
	s.metrics.outputBytesTotal.Add(float64(result.Output.Bytes))
	s.metrics.computeTimeMSTotal.Add(float64(computeTimeMS))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
