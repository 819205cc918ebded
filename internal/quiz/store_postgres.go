package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. Inline questions live in the
// quizzes.questions jsonb column; legacy questions live one per row in
// quiz_questions, keyed by position. Rows keep whatever id they had, and an
// absent id stays absent.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed quiz store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	q := &Quiz{}
	var questions []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, questions
		 FROM quizzes
		 WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.Title, &q.Description, &questions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quiz %s: %w", id, ErrQuizNotFound)
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &q.Questions); err != nil {
			return nil, fmt.Errorf("decode questions for quiz %s: %w", id, err)
		}
	}
	return q, nil
}

func (s *PostgresStore) Questions(ctx context.Context, quizID string) (Set, error) {
	q, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return Set{}, err
	}
	return resolveSet(q, func() ([]Record, error) {
		return s.legacyQuestions(ctx, quizID)
	})
}

func (s *PostgresStore) SaveQuiz(ctx context.Context, q Quiz) error {
	if q.ID == "" {
		return fmt.Errorf("quiz id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	questions := q.Questions
	if questions == nil {
		questions = []Record{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save quiz: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO quizzes (id, title, description, questions)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     questions = EXCLUDED.questions,
		     updated_at = NOW()`,
		q.ID,
		q.Title,
		q.Description,
		string(data),
	); err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, q.ID); err != nil {
		return fmt.Errorf("clear legacy questions: %w", err)
	}

	for i, r := range q.Legacy {
		row, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal legacy question %d: %w", i, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_questions (quiz_id, question_id, position, data)
			 VALUES ($1, $2, $3, $4::jsonb)`,
			q.ID,
			r.ID(),
			i,
			string(row),
		); err != nil {
			return fmt.Errorf("insert legacy question %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save quiz: %w", err)
	}
	return nil
}

func (s *PostgresStore) legacyQuestions(ctx context.Context, quizID string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT position, data
		 FROM quiz_questions
		 WHERE quiz_id = $1
		 ORDER BY position ASC`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("query legacy questions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var position int
		var data []byte
		if err := rows.Scan(&position, &data); err != nil {
			return nil, fmt.Errorf("scan legacy question: %w", err)
		}
		r := Record{}
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode legacy question %d: %w", position, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy questions: %w", err)
	}
	return out, nil
}
