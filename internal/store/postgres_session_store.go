package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glowpix/glow/internal/domain"
	"github.com/glowpix/glow/internal/enhance"
	_ "github.com/lib/pq"
)

const sessionSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	source_type TEXT NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL,
	result_key TEXT NOT NULL DEFAULT '',
	settings JSONB NOT NULL,
	comparison_ratio DOUBLE PRECISION NOT NULL DEFAULT 50,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_logs (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	pixels_processed BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(ctx context.Context, dsn string) (*PostgresSessionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresSessionStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresSessionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sessionSchemaSQL); err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresSessionStore) Create(ctx context.Context, sess domain.Session) error {
	settingsJSON, err := json.Marshal(sess.Settings)
	if err != nil {
		return fmt.Errorf("marshal session settings: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, user_id, status, source_type, webhook_url, object_key, result_key, settings, comparison_ratio, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sess.ID,
		sess.UserID,
		sess.Status,
		sess.SourceType,
		sess.WebhookURL,
		sess.ObjectKey,
		sess.ResultKey,
		settingsJSON,
		sess.ComparisonRatio,
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, id string) (domain.Session, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, status, source_type, webhook_url, object_key, result_key, settings, comparison_ratio, created_at, updated_at
		 FROM sessions
		 WHERE id = $1`,
		id,
	)

	var (
		sess         domain.Session
		settingsJSON []byte
	)
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.Status,
		&sess.SourceType,
		&sess.WebhookURL,
		&sess.ObjectKey,
		&sess.ResultKey,
		&settingsJSON,
		&sess.ComparisonRatio,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, fmt.Errorf("query session: %w", err)
	}

	if err := json.Unmarshal(settingsJSON, &sess.Settings); err != nil {
		return domain.Session{}, false, fmt.Errorf("unmarshal session settings: %w", err)
	}

	return sess, true, nil
}

func (s *PostgresSessionStore) UpdateStatus(ctx context.Context, id, status string) (domain.Session, error) {
	return s.exec(ctx, id,
		`UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
}

func (s *PostgresSessionStore) UpdateSettings(ctx context.Context, id string, settings enhance.Settings, status string) (domain.Session, error) {
	settingsJSON, err := json.Marshal(settings.Clamped())
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session settings: %w", err)
	}
	return s.exec(ctx, id,
		`UPDATE sessions SET settings = $1, status = $2, comparison_ratio = $3, updated_at = $4 WHERE id = $5`,
		settingsJSON, status, float64(domain.DefaultComparisonRatio), time.Now().UTC(), id,
	)
}

func (s *PostgresSessionStore) UpdateComparison(ctx context.Context, id string, ratio float64) (domain.Session, error) {
	return s.exec(ctx, id,
		`UPDATE sessions SET comparison_ratio = $1, updated_at = $2 WHERE id = $3`,
		ratio, time.Now().UTC(), id,
	)
}

func (s *PostgresSessionStore) UpdateResult(ctx context.Context, id, resultKey, status string) (domain.Session, error) {
	return s.exec(ctx, id,
		`UPDATE sessions SET result_key = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultKey, status, time.Now().UTC(), id,
	)
}

func (s *PostgresSessionStore) Reset(ctx context.Context, id string) (domain.Session, error) {
	return s.exec(ctx, id,
		`UPDATE sessions SET result_key = '', status = $1, comparison_ratio = $2, updated_at = $3 WHERE id = $4`,
		domain.SessionStatusCreated, float64(domain.DefaultComparisonRatio), time.Now().UTC(), id,
	)
}

func (s *PostgresSessionStore) CreateUsageLog(ctx context.Context, usage domain.UsageLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO usage_logs (user_id, session_id, pixels_processed, output_bytes, compute_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		usage.UserID,
		usage.SessionID,
		usage.PixelsProcessed,
		usage.OutputBytes,
		usage.ComputeTimeMS,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) exec(ctx context.Context, id, query string, args ...any) (domain.Session, error) {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}

	sess, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}

	return sess, nil
}
