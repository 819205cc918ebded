package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps reports in the reports table with the analysis and
// contribution as jsonb.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a PostgreSQL-backed report store.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Save(ctx context.Context, r Report) (string, error) {
	r, err := prepare(r, time.Now)
	if err != nil {
		return "", err
	}

	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}
	analysis, err := json.Marshal(r.Analysis)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	contribution, err := json.Marshal(r.Contribution)
	if err != nil {
		return "", fmt.Errorf("marshal contribution: %w", err)
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, user_id, quiz_id, quiz_title, submitted_at, report_version,
		                      answers, analysis, contribution, metadata)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10::jsonb)`,
		r.ID,
		r.UserID,
		r.QuizID,
		r.QuizTitle,
		r.SubmittedAt,
		r.ReportVersion,
		string(answers),
		string(analysis),
		string(contribution),
		string(metadata),
	); err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}

	s.logger.Debug("report saved",
		"report_id", r.ID,
		"user_id", r.UserID,
		"quiz_id", r.QuizID,
	)
	return r.ID, nil
}

const selectReport = `SELECT id::text, user_id, quiz_id, quiz_title, submitted_at, report_version,
        answers, analysis, contribution, metadata
 FROM reports`

func (s *PostgresStore) Get(ctx context.Context, id string) (Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	r, err := scanReport(s.pool.QueryRow(ctx, selectReport+` WHERE id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		return Report{}, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectReport+` WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func scanReport(row pgx.Row) (Report, error) {
	var r Report
	var answers, analysis, contribution, metadata []byte
	if err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.QuizID,
		&r.QuizTitle,
		&r.SubmittedAt,
		&r.ReportVersion,
		&answers,
		&analysis,
		&contribution,
		&metadata,
	); err != nil {
		return Report{}, err
	}

	for _, part := range []struct {
		name string
		data []byte
		into any
	}{
		{"answers", answers, &r.Answers},
		{"analysis", analysis, &r.Analysis},
		{"contribution", contribution, &r.Contribution},
		{"metadata", metadata, &r.Metadata},
	} {
		if len(part.data) == 0 {
			continue
		}
		if err := json.Unmarshal(part.data, part.into); err != nil {
			return Report{}, fmt.Errorf("decode %s: %w", part.name, err)
		}
	}
	r.BadgesUnlocked = []string{}
	return r, nil
}
