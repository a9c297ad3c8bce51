package store

import (
	"context"

	"github.com/glowpix/glow/internal/domain"
	"github.com/glowpix/glow/internal/enhance"
)

type SessionStore interface {
	Create(ctx context.Context, sess domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Session, error)
	UpdateSettings(ctx context.Context, id string, settings enhance.Settings, status string) (domain.Session, error)
	UpdateComparison(ctx context.Context, id string, ratio float64) (domain.Session, error)
	UpdateResult(ctx context.Context, id, resultKey, status string) (domain.Session, error)
	Reset(ctx context.Context, id string) (domain.Session, error)
}

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}
