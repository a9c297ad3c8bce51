package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glowpix/glow/internal/enhance"
)

const (
	SessionStatusCreated    = "created"
	SessionStatusQueued     = "queued"
	SessionStatusProcessing = "processing"
	SessionStatusEnhanced   = "enhanced"
	SessionStatusEditing    = "editing"
	SessionStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

// DefaultComparisonRatio is the split-view midpoint a fresh or reloaded
// session starts at.
const DefaultComparisonRatio = 50

type CreateSessionRequest struct {
	SourceType string            `json:"source_type"`
	ObjectKey  string            `json:"object_key,omitempty"`
	WebhookURL string            `json:"webhook_url,omitempty"`
	Settings   *enhance.Settings `json:"settings,omitempty"`
}

// Session is the persisted record of one enhancement session: a single
// source image, its tunable settings, and the state of the pipeline run.
type Session struct {
	ID              string
	UserID          string
	Status          string
	SourceType      string
	WebhookURL      string
	ObjectKey       string
	ResultKey       string
	Settings        enhance.Settings
	ComparisonRatio float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r CreateSessionRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	return nil
}

// ResolvedSettings returns the request settings clamped to their domains, or
// the defaults when the request carried none.
func (r CreateSessionRequest) ResolvedSettings() enhance.Settings {
	if r.Settings == nil {
		return enhance.DefaultSettings()
	}
	return r.Settings.Clamped()
}
