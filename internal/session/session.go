// Package session owns the enhancement state machine: it holds the source
// bitmap and settings, runs the tonal and sharpening stages in order, and
// guards every state-dependent operation behind explicit preconditions. The
// surrounding service (HTTP API, queue worker) only issues commands and
// observes state; it never reaches into the pipeline directly.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glowpix/glow/internal/enhance"
)

type State string

const (
	StateIdle       State = "idle"
	StateLoaded     State = "loaded"
	StateProcessing State = "processing"
	StateEnhanced   State = "enhanced"
	StateEditing    State = "editing"
)

var (
	ErrNoImage         = errors.New("no image loaded")
	ErrBusy            = errors.New("enhancement already in progress")
	ErrAlreadyEnhanced = errors.New("result already present, return to settings first")
	ErrNotEnhanced     = errors.New("result not ready")
	ErrAborted         = errors.New("enhancement discarded by reset")
)

const defaultComparisonRatio = 50

type Config struct {
	// MinProcessingTime pads fast enhancements so the processing state is
	// observable. Purely presentational; zero disables the pacing entirely.
	MinProcessingTime time.Duration
}

type Session struct {
	mu         sync.Mutex
	state      State
	source     *enhance.Bitmap
	result     *enhance.Bitmap
	settings   enhance.Settings
	ratio      float64
	generation uint64
	pacing     time.Duration
}

func New(cfg Config) *Session {
	return &Session{
		state:    StateIdle,
		settings: enhance.DefaultSettings(),
		ratio:    defaultComparisonRatio,
		pacing:   cfg.MinProcessingTime,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Settings() enhance.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Session) ComparisonRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio
}

// Load replaces the source bitmap and moves to the loaded state. Any
// in-flight enhancement is discarded, the previous result is dropped and the
// comparison ratio returns to the midpoint. Settings are kept as-is.
func (s *Session) Load(bmp *enhance.Bitmap) error {
	if bmp == nil || len(bmp.Pix) != bmp.Width*bmp.Height*4 {
		return enhance.ErrInvalidBitmap
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.source = bmp
	s.result = nil
	s.ratio = defaultComparisonRatio
	s.state = StateLoaded
	return nil
}

// ApplySettings stores clamped settings. They take effect on the next
// Enhance call, never retroactively. From the enhanced state this doubles as
// the return-to-settings transition.
func (s *Session) ApplySettings(settings enhance.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateProcessing {
		return ErrBusy
	}

	s.settings = settings.Clamped()
	if s.state == StateEnhanced {
		s.state = StateEditing
		s.ratio = defaultComparisonRatio
	}
	return nil
}

// ReturnToSettings leaves the enhanced view. The prior result is retained in
// case the user re-enhances with unchanged settings.
func (s *Session) ReturnToSettings() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEnhanced {
		return ErrNotEnhanced
	}
	s.state = StateEditing
	s.ratio = defaultComparisonRatio
	return nil
}

// Enhance runs the tonal stage and, for sharpness above neutral, the
// convolution stage, then commits the result. It blocks for at least the
// configured minimum processing time. A Reset or Load issued while the
// pipeline is running wins: the computed result is discarded and ErrAborted
// is returned. Calling Enhance while already processing has no effect.
func (s *Session) Enhance(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateProcessing:
		s.mu.Unlock()
		return ErrBusy
	case StateIdle:
		s.mu.Unlock()
		return ErrNoImage
	case StateEnhanced:
		s.mu.Unlock()
		return ErrAlreadyEnhanced
	}

	generation := s.generation
	source := s.source
	settings := s.settings
	previous := s.state
	s.state = StateProcessing
	s.mu.Unlock()

	started := time.Now()
	final := enhance.Sharpen(enhance.AdjustTone(source, settings), settings.SharpenAmount())

	if remaining := s.pacing - time.Since(started); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.abort(generation, previous)
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return ErrAborted
	}
	s.result = final
	s.state = StateEnhanced
	return nil
}

// abort rolls the state back after a cancelled pacing wait, unless a reset
// or reload already moved the session on.
func (s *Session) abort(generation uint64, previous State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation && s.state == StateProcessing {
		s.state = previous
	}
}

// Reset discards the source and result and returns to idle. Settings keep
// their last user-edited values.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.source = nil
	s.result = nil
	s.state = StateIdle
}

// SetComparisonRatio clamps and stores the reveal ratio for the split view.
// Only meaningful while a result is on display.
func (s *Session) SetComparisonRatio(ratio float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEnhanced {
		return s.ratio, ErrNotEnhanced
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 100 {
		ratio = 100
	}
	s.ratio = ratio
	return s.ratio, nil
}

// FinalBitmap hands out the enhanced bitmap for display or export.
func (s *Session) FinalBitmap() (*enhance.Bitmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateEnhanced || s.result == nil {
		return nil, ErrNotEnhanced
	}
	return s.result, nil
}
