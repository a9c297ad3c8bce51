// Package pipeline runs one enhancement end to end: fetch the source bytes,
// decode them into a bitmap, drive a session through the tonal and
// sharpening stages, encode the result and emit it to local disk or object
// storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glowpix/glow/internal/enhance"
	"github.com/glowpix/glow/internal/session"
)

const SourceTypeLocalFile = "local_file"

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	SessionID  string
	SourceType string
	ObjectKey  string
	Settings   enhance.Settings
}

type Output struct {
	Format  string
	Path    string
	Bytes   int
	Width   int
	Height  int
	Success bool
}

type Result struct {
	Output      Output
	SourceBytes int
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, data []byte, width, height int) (Output, error)
}

type Processor struct {
	fetcher Fetcher
	emitter Emitter
	pacing  time.Duration
}

func NewProcessor(fetcher Fetcher, emitter Emitter) (*Processor, error) {
	if fetcher == nil || emitter == nil {
		return nil, errors.New("fetcher and emitter are required")
	}
	return &Processor{fetcher: fetcher, emitter: emitter}, nil
}

func NewLocalProcessor(outputDir string) (*Processor, error) {
	return NewProcessor(LocalFileFetcher{}, LocalFileEmitter{OutputDir: outputDir})
}

// SetPacing enforces a minimum wall-clock duration per enhancement run so
// very small inputs do not flash through the processing state.
func (p *Processor) SetPacing(d time.Duration) {
	p.pacing = d
}

// Process runs the full pipeline for one session. The enhancement itself
// goes through a session state machine so the service path and the
// interactive path share the same transition rules.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return Result{}, errors.New("session_id is required")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	bmp, err := decodeBitmap(sourceBytes)
	if err != nil {
		return Result{}, fmt.Errorf("decode stage: %w", err)
	}

	sess := session.New(session.Config{MinProcessingTime: p.pacing})
	if err := sess.Load(bmp); err != nil {
		return Result{}, fmt.Errorf("load stage: %w", err)
	}
	if err := sess.ApplySettings(req.Settings); err != nil {
		return Result{}, fmt.Errorf("apply settings: %w", err)
	}
	if err := sess.Enhance(ctx); err != nil {
		return Result{}, fmt.Errorf("enhance stage: %w", err)
	}

	final, err := sess.FinalBitmap()
	if err != nil {
		return Result{}, fmt.Errorf("collect result: %w", err)
	}

	encoded, err := encodeResult(final)
	if err != nil {
		return Result{}, fmt.Errorf("encode stage: %w", err)
	}

	output, err := p.emitter.Emit(ctx, req, encoded, final.Width, final.Height)
	if err != nil {
		return Result{}, fmt.Errorf("emit stage: %w", err)
	}

	return Result{Output: output, SourceBytes: len(sourceBytes)}, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, data []byte, width, height int) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}

	sessionDir := filepath.Join(e.OutputDir, sanitizePathToken(req.SessionID))
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(sessionDir, ResultFilename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		Format:  "png",
		Path:    fullPath,
		Bytes:   len(data),
		Width:   width,
		Height:  height,
		Success: true,
	}, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
