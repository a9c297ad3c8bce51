package worker

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/glowpix/glow/internal/domain"
	"github.com/glowpix/glow/internal/enhance"
	"github.com/glowpix/glow/internal/pipeline"
	"github.com/glowpix/glow/internal/store"
)

func TestRecordUsageWritesUsageLog(t *testing.T) {
	sessions := store.NewMemorySessionStore()
	if err := sessions.Create(context.Background(), domain.Session{
		ID:              "sess-1",
		UserID:          "user-1",
		Status:          domain.SessionStatusProcessing,
		SourceType:      domain.SourceTypeLocalFile,
		ObjectKey:       "input.png",
		Settings:        enhance.DefaultSettings(),
		ComparisonRatio: domain.DefaultComparisonRatio,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		sessions:   sessions,
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "sess-1", pipeline.Result{
		SourceBytes: 1_000,
		Output:      pipeline.Output{Width: 30, Height: 20, Bytes: 700},
	}, 250*time.Millisecond)

	if !usageStore.called {
		t.Fatal("expected usage log to be written")
	}
	if usageStore.log.UserID != "user-1" {
		t.Fatalf("expected user_id=user-1, got %s", usageStore.log.UserID)
	}
	if usageStore.log.PixelsProcessed != 600 {
		t.Fatalf("expected pixels_processed=600, got %d", usageStore.log.PixelsProcessed)
	}
	if usageStore.log.OutputBytes != 700 {
		t.Fatalf("expected output_bytes=700, got %d", usageStore.log.OutputBytes)
	}
	if usageStore.log.ComputeTimeMS != 250 {
		t.Fatalf("expected compute_time_ms=250, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestRecordUsageDefaultsUnknownUser(t *testing.T) {
	usageStore := &captureUsageStore{}
	s := &Server{
		logger:     log.New(io.Discard, "", 0),
		usageStore: usageStore,
		metrics:    newMetrics(),
	}

	s.recordUsage(context.Background(), "sess-2", pipeline.Result{
		SourceBytes: 100,
		Output:      pipeline.Output{Width: 5, Height: 5, Bytes: 200},
	}, 0)

	if usageStore.log.UserID != "anonymous" {
		t.Fatalf("expected user_id=anonymous, got %s", usageStore.log.UserID)
	}
	if usageStore.log.ComputeTimeMS < 1 {
		t.Fatalf("expected compute_time_ms to be at least 1, got %d", usageStore.log.ComputeTimeMS)
	}
}

func TestStoreResultMarksSessionEnhanced(t *testing.T) {
	sessions := store.NewMemorySessionStore()
	if err := sessions.Create(context.Background(), domain.Session{
		ID:              "sess-3",
		Status:          domain.SessionStatusProcessing,
		SourceType:      domain.SourceTypeS3Presigned,
		ObjectKey:       "uploads/sess-3/source",
		Settings:        enhance.DefaultSettings(),
		ComparisonRatio: domain.DefaultComparisonRatio,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	s := &Server{
		logger:   log.New(io.Discard, "", 0),
		sessions: sessions,
		metrics:  newMetrics(),
	}

	s.storeResult(context.Background(), "sess-3", "results/sess-3/enhanced-photo.png")

	sess, ok, err := sessions.Get(context.Background(), "sess-3")
	if err != nil || !ok {
		t.Fatalf("load session: ok=%v err=%v", ok, err)
	}
	if sess.Status != domain.SessionStatusEnhanced {
		t.Fatalf("expected status enhanced, got %s", sess.Status)
	}
	if sess.ResultKey != "results/sess-3/enhanced-photo.png" {
		t.Fatalf("unexpected result key: %s", sess.ResultKey)
	}
}

type captureUsageStore struct {
	called bool
	log    domain.UsageLog
}

func (s *captureUsageStore) CreateUsageLog(_ context.Context, usage domain.UsageLog) error {
	s.called = true
	s.log = usage
	return nil
}
