// Package history defines the persistence layer for the artefacts a signed-in
// reader produces: AI summaries, quiz attempts, canvas notes and therapist
// referral requests.
//
// The [Store] interface is public so alternative backends can be supplied.
// Claire ships a PostgreSQL implementation (package postgres), an in-memory
// [MemStore] used when no database is configured, and a test double (package
// mock).
//
// Every implementation must be safe for concurrent use.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested history kind or record does
	// not exist.
	ErrNotFound = errors.New("history: not found")

	// ErrInvalid wraps validation failures of records handed to a Store.
	ErrInvalid = errors.New("history: invalid record")
)

// Kind names one of the per-user record collections.
type Kind string

const (
	KindSummaries    Kind = "summaries"
	KindQuizAttempts Kind = "quiz-attempts"
	KindCanvas       Kind = "canvas"
)

// ParseKind maps a path segment to a Kind. Unknown values wrap [ErrNotFound].
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSummaries, KindQuizAttempts, KindCanvas:
		return k, nil
	}
	return "", fmt.Errorf("%w: kind %q", ErrNotFound, s)
}

// Summary is one AI summary saved by a reader.
type Summary struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	SourceText  string    `json:"sourceText"`
	SummaryText string    `json:"summaryText"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QuizAttempt is one completed quiz. Questions is kept as the raw JSON array
// the client submitted so the store does not depend on the quiz schema.
type QuizAttempt struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Questions      json.RawMessage `json:"questions"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	SourceText     string          `json:"sourceText"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// CanvasEntry is one note written on the reading canvas.
type CanvasEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Referral is a request to be contacted by a therapist. Referrals are not
// tied to a user ID; anonymous readers may send them too.
type Referral struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Age       string    `json:"age,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Counts is the per-user profile tally.
type Counts struct {
	Summaries int `json:"summaries"`
	Quizzes   int `json:"quizzes"`
	Canvas    int `json:"canvas"`
}

// Store persists and lists history records. List methods return records
// newest first; an unknown user yields an empty, non-nil slice.
type Store interface {
	SaveSummary(ctx context.Context, s Summary) (Summary, error)
	SaveQuizAttempt(ctx context.Context, a QuizAttempt) (QuizAttempt, error)
	SaveCanvas(ctx context.Context, e CanvasEntry) (CanvasEntry, error)
	SaveReferral(ctx context.Context, r Referral) (Referral, error)

	ListSummaries(ctx context.Context, userID string) ([]Summary, error)
	ListQuizAttempts(ctx context.Context, userID string) ([]QuizAttempt, error)
	ListCanvas(ctx context.Context, userID string) ([]CanvasEntry, error)

	Counts(ctx context.Context, userID string) (Counts, error)
}

// Validate checks the required fields of a summary.
func (s Summary) Validate() error {
	var errs []error
	if s.UserID == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if strings.TrimSpace(s.SummaryText) == "" {
		errs = append(errs, errors.New("summary text is required"))
	}
	return invalid(errs)
}

// Validate checks the required fields of a quiz attempt.
func (a QuizAttempt) Validate() error {
	var errs []error
	if a.UserID == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if a.TotalQuestions < 0 || a.Score < 0 || a.Score > a.TotalQuestions {
		errs = append(errs, fmt.Errorf("score %d out of range for %d questions", a.Score, a.TotalQuestions))
	}
	if len(a.Questions) > 0 && !json.Valid(a.Questions) {
		errs = append(errs, errors.New("questions must be valid JSON"))
	}
	return invalid(errs)
}

// Validate checks the required fields of a canvas entry.
func (e CanvasEntry) Validate() error {
	var errs []error
	if e.UserID == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if strings.TrimSpace(e.Content) == "" {
		errs = append(errs, errors.New("content is required"))
	}
	return invalid(errs)
}

// Validate checks the required fields of a referral: name, mobile and message.
func (r Referral) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(r.Mobile) == "" {
		errs = append(errs, errors.New("mobile is required"))
	}
	if strings.TrimSpace(r.Message) == "" {
		errs = append(errs, errors.New("message is required"))
	}
	return invalid(errs)
}

func invalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Stamp fills an empty ID with a fresh UUID and a zero timestamp with now.
// Stores call it before persisting.
func Stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
