// Package store persists session reports to PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maastricht-university/interview-coach/orchestrator"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS session_reports (
	id                  BIGSERIAL PRIMARY KEY,
	session_id          TEXT NOT NULL,
	started_at          TIMESTAMPTZ NOT NULL,
	stopped_at          TIMESTAMPTZ NOT NULL,
	body_language_score DOUBLE PRECISION NOT NULL,
	voice_tone_score    DOUBLE PRECISION NOT NULL,
	combined_score      DOUBLE PRECISION NOT NULL,
	overall_status      TEXT NOT NULL,
	questions           JSONB NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS session_reports_session_id_idx ON session_reports (session_id)`,
}

const insertReport = `
INSERT INTO session_reports
	(session_id, started_at, stopped_at, body_language_score, voice_tone_score, combined_score, overall_status, questions)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresReporter writes one session_reports row per stopped session.
type PostgresReporter struct {
	db   execer
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool, checks it and makes sure the table exists.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresReporter, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &PostgresReporter{db: pool, pool: pool}
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresReporter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create session_reports: %w", err)
		}
	}
	return nil
}

func (r *PostgresReporter) Save(ctx context.Context, res orchestrator.FinalResult) error {
	questions := res.QuestionAnalyses
	if questions == nil {
		questions = []orchestrator.QuestionAnalysis{}
	}
	qs, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = r.db.Exec(ctx, insertReport,
		res.SessionID,
		res.StartedAt,
		res.StoppedAt,
		res.BodyLanguageScore,
		res.VoiceToneScore,
		res.CombinedScore,
		res.OverallStatus,
		qs,
	)
	if err != nil {
		return fmt.Errorf("insert session report %s: %w", res.SessionID, err)
	}
	return nil
}

func (r *PostgresReporter) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
