package textkit

import (
	"errors"
	"fmt"
	"strings"
)

// Quiz bounds.
const (
	MinQuizQuestions = 3
	MaxQuizQuestions = 5
	QuizOptions      = 4
)

// QuizQuestion is one multiple-choice question. Answer indexes Options.
type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
}

// Validate reports whether q has a non-empty question, exactly four
// non-empty options and an answer in [0,3].
func (q QuizQuestion) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question text is missing")
	}
	if len(q.Options) != QuizOptions {
		return fmt.Errorf("must have exactly %d options, got %d", QuizOptions, len(q.Options))
	}
	for _, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return errors.New("has an empty option")
		}
	}
	if q.Answer < 0 || q.Answer >= QuizOptions {
		return fmt.Errorf("answer %d must be 0-%d", q.Answer, QuizOptions-1)
	}
	return nil
}

// ValidateQuiz checks the question count and every question.
func ValidateQuiz(questions []QuizQuestion) error {
	if n := len(questions); n < MinQuizQuestions || n > MaxQuizQuestions {
		return fmt.Errorf("quiz must contain %d to %d questions, got %d", MinQuizQuestions, MaxQuizQuestions, n)
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d %w", i+1, err)
		}
	}
	return nil
}

// FallbackQuiz builds a three-question quiz from the keywords of text. The
// correct answer is always the first option.
func FallbackQuiz(text string) []QuizQuestion {
	keywords := Keywords(text, 3)
	topic := "the topic"
	if len(keywords) > 0 {
		topic = keywords[0]
	}
	word := topic
	if len(keywords) > 1 {
		word = keywords[1]
	}

	return []QuizQuestion{
		{
			Question: "What is the passage mostly about?",
			Options:  []string{topic, "sports", "cooking", "space"},
		},
		{
			Question: "Which word appears in the text?",
			Options:  []string{word, "mountain", "ocean", "planet"},
		},
		{
			Question: "What is a good next step after reading?",
			Options:  []string{"Review the key points", "Ignore the text", "Skip all details", "Delete the notes"},
		},
	}
}
