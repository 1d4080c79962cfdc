package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/claire/pkg/history"
)

var _ history.Store = (*Store)(nil)

// Store is the PostgreSQL-backed history store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool to the database at dsn, verifies it with
// a ping and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Ping checks database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveSummary implements [history.Store].
func (s *Store) SaveSummary(ctx context.Context, sum history.Summary) (history.Summary, error) {
	if err := sum.Validate(); err != nil {
		return history.Summary{}, err
	}
	history.Stamp(&sum.ID, &sum.CreatedAt)

	const q = `
		INSERT INTO ai_summaries (id, user_id, source_text, summary_text, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, sum.ID, sum.UserID, sum.SourceText, sum.SummaryText, sum.CreatedAt); err != nil {
		return history.Summary{}, fmt.Errorf("history store: save summary: %w", err)
	}
	return sum, nil
}

// SaveQuizAttempt implements [history.Store].
func (s *Store) SaveQuizAttempt(ctx context.Context, a history.QuizAttempt) (history.QuizAttempt, error) {
	if err := a.Validate(); err != nil {
		return history.QuizAttempt{}, err
	}
	history.Stamp(&a.ID, &a.CreatedAt)
	questions := []byte(a.Questions)
	if len(questions) == 0 {
		questions = []byte("[]")
	}

	const q = `
		INSERT INTO quiz_attempts (id, user_id, questions, score, total_questions, source_text, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)`
	if _, err := s.pool.Exec(ctx, q, a.ID, a.UserID, string(questions), a.Score, a.TotalQuestions, a.SourceText, a.CreatedAt); err != nil {
		return history.QuizAttempt{}, fmt.Errorf("history store: save quiz attempt: %w", err)
	}
	a.Questions = questions
	return a, nil
}

// SaveCanvas implements [history.Store].
func (s *Store) SaveCanvas(ctx context.Context, e history.CanvasEntry) (history.CanvasEntry, error) {
	if err := e.Validate(); err != nil {
		return history.CanvasEntry{}, err
	}
	history.Stamp(&e.ID, &e.CreatedAt)

	const q = `
		INSERT INTO canvas_entries (id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, q, e.ID, e.UserID, e.Content, e.CreatedAt); err != nil {
		return history.CanvasEntry{}, fmt.Errorf("history store: save canvas: %w", err)
	}
	return e, nil
}

// SaveReferral implements [history.Store].
func (s *Store) SaveReferral(ctx context.Context, r history.Referral) (history.Referral, error) {
	if err := r.Validate(); err != nil {
		return history.Referral{}, err
	}
	history.Stamp(&r.ID, &r.CreatedAt)

	const q = `
		INSERT INTO therapist_referrals (id, name, mobile, age, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, q, r.ID, r.Name, r.Mobile, r.Age, r.Message, r.CreatedAt); err != nil {
		return history.Referral{}, fmt.Errorf("history store: save referral: %w", err)
	}
	return r, nil
}

// ListSummaries implements [history.Store].
func (s *Store) ListSummaries(ctx context.Context, userID string) ([]history.Summary, error) {
	const q = `
		SELECT id, user_id, source_text, summary_text, created_at
		FROM   ai_summaries
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("history store: list summaries: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Summary, error) {
		var v history.Summary
		err := row.Scan(&v.ID, &v.UserID, &v.SourceText, &v.SummaryText, &v.CreatedAt)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan summaries: %w", err)
	}
	return nonNil(out), nil
}

// ListQuizAttempts implements [history.Store].
func (s *Store) ListQuizAttempts(ctx context.Context, userID string) ([]history.QuizAttempt, error) {
	const q = `
		SELECT id, user_id, questions, score, total_questions, source_text, created_at
		FROM   quiz_attempts
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("history store: list quiz attempts: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.QuizAttempt, error) {
		var (
			v         history.QuizAttempt
			questions []byte
		)
		err := row.Scan(&v.ID, &v.UserID, &questions, &v.Score, &v.TotalQuestions, &v.SourceText, &v.CreatedAt)
		v.Questions = questions
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan quiz attempts: %w", err)
	}
	return nonNil(out), nil
}

// ListCanvas implements [history.Store].
func (s *Store) ListCanvas(ctx context.Context, userID string) ([]history.CanvasEntry, error) {
	const q = `
		SELECT id, user_id, content, created_at
		FROM   canvas_entries
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("history store: list canvas: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.CanvasEntry, error) {
		var v history.CanvasEntry
		err := row.Scan(&v.ID, &v.UserID, &v.Content, &v.CreatedAt)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan canvas: %w", err)
	}
	return nonNil(out), nil
}

// Counts implements [history.Store] with one round trip.
func (s *Store) Counts(ctx context.Context, userID string) (history.Counts, error) {
	const q = `
		SELECT
		    (SELECT count(*) FROM ai_summaries   WHERE user_id = $1),
		    (SELECT count(*) FROM quiz_attempts  WHERE user_id = $1),
		    (SELECT count(*) FROM canvas_entries WHERE user_id = $1)`

	var c history.Counts
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&c.Summaries, &c.Quizzes, &c.Canvas); err != nil {
		return history.Counts{}, fmt.Errorf("history store: counts: %w", err)
	}
	return c, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
