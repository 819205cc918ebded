package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. Each row carries a version
// column that every write bumps.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed stats store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Versioned, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var rec Versioned
	err := s.pool.QueryRow(ctx,
		`SELECT total_quizzes_taken, total_time_spent_minutes, total_xp, level,
		        average_score, perfect_scores, version
		 FROM user_stats
		 WHERE user_id = $1`,
		userID,
	).Scan(
		&rec.Stats.TotalQuizzesTaken,
		&rec.Stats.TotalTimeSpentMinutes,
		&rec.Stats.TotalXP,
		&rec.Stats.Level,
		&rec.Stats.AverageScore,
		&rec.Stats.PerfectScores,
		&rec.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Versioned{}, ErrNotFound
		}
		return Versioned{}, fmt.Errorf("get stats: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, userID string, expected int64, next Stats) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("user_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var version int64
	var err error
	if expected == 0 {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO user_stats (user_id, total_quizzes_taken, total_time_spent_minutes, total_xp,
			                         level, average_score, perfect_scores, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
			 ON CONFLICT (user_id) DO NOTHING
			 RETURNING version`,
			userID,
			next.TotalQuizzesTaken,
			next.TotalTimeSpentMinutes,
			next.TotalXP,
			next.Level,
			next.AverageScore,
			next.PerfectScores,
		).Scan(&version)
	} else {
		err = s.pool.QueryRow(ctx,
			`UPDATE user_stats
			 SET total_quizzes_taken = $3,
			     total_time_spent_minutes = $4,
			     total_xp = $5,
			     level = $6,
			     average_score = $7,
			     perfect_scores = $8,
			     version = version + 1,
			     updated_at = NOW()
			 WHERE user_id = $1 AND version = $2
			 RETURNING version`,
			userID,
			expected,
			next.TotalQuizzesTaken,
			next.TotalTimeSpentMinutes,
			next.TotalXP,
			next.Level,
			next.AverageScore,
			next.PerfectScores,
		).Scan(&version)
	}
	if err != nil {
		// No row back means the insert hit an existing row or the version moved.
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("write stats: %w", err)
	}
	return version, nil
}
