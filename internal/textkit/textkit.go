// Package textkit holds the deterministic, local text tools used by the
// reader: input normalisation, word simplification, extractive summaries,
// keyword ranking, mind maps and the heuristic fallback quiz.
//
// Nothing here performs I/O. The content gateway relies on these functions to
// produce a usable result whenever the remote model is unavailable, so every
// function must return a well-formed value for any input, including "".
package textkit

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultMaxInputChars is the normalised input bound used when none is
// configured.
const DefaultMaxInputChars = 1600

// MaxSummaryWords bounds every summary handed to the reader.
const MaxSummaryWords = 80

var (
	sentenceStop = regexp.MustCompile(`[.!?]`)
	wordToken    = regexp.MustCompile(`\w+`)
)

// wordRun matches the same words as strings.Fields.
var wordRun = regexp.MustCompile(`[^\s\v\x{85}\p{Z}]+`)

// Normalize collapses every whitespace run to a single space, trims the result
// and truncates it to at most max runes. max <= 0 selects
// [DefaultMaxInputChars].
func Normalize(raw string, max int) string {
	if max <= 0 {
		max = DefaultMaxInputChars
	}
	s := collapseSpace(raw)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return strings.TrimSpace(s[:i])
		}
		n++
	}
	return s
}

// complexToSimple maps long words to plain synonyms.
var complexToSimple = map[string]string{
	"comprehend":    "understand",
	"assistance":    "help",
	"collaboration": "teamwork",
	"communicate":   "share",
	"accomplish":    "complete",
	"demonstrate":   "show",
	"initiate":      "start",
	"conclude":      "finish",
	"terminate":     "end",
	"utilize":       "use",
	"facilitate":    "support",
	"implement":     "do",
	"establish":     "set",
	"substantial":   "big",
	"complexity":    "difficulty",
	"methodology":   "method",
	"cognition":     "thinking",
	"equilibrium":   "balance",
	"alleviate":     "ease",
}

// Simplify replaces complex words with simpler synonyms. Matching is
// case-insensitive and limited to whole words; the result has its whitespace
// collapsed and trimmed.
func Simplify(text string) string {
	out := wordToken.ReplaceAllStringFunc(text, func(w string) string {
		if simple, ok := complexToSimple[strings.ToLower(w)]; ok {
			return simple
		}
		return w
	})
	return collapseSpace(out)
}

// collapseSpace joins the fields of s with single spaces. Any rune for which
// unicode.IsSpace holds separates fields, so NBSP and ideographic spaces from
// pasted text collapse too.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Sentences splits text on '.', '!' and '?' and returns the trimmed,
// non-empty parts. The terminators are not kept.
func Sentences(text string) []string {
	parts := sentenceStop.Split(strings.ReplaceAll(text, "\n", " "), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// reflectionPrompt closes summaries of texts longer than three sentences.
const reflectionPrompt = "Encourage reflection or action based on the final idea."

// ExtractiveSummary returns the local summary points of text: its first
// three sentences, followed by a reflection prompt when the text is longer.
func ExtractiveSummary(text string) []string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}
	points := slices.Clone(sentences[:min(3, len(sentences))])
	if len(sentences) > 3 {
		points = append(points, reflectionPrompt)
	}
	return points
}

// NoSummary is the fallback summary for text without any sentence.
const NoSummary = "We could not generate a summary. Please try again."

// FallbackSummary builds a "Key points" list from the first three sentences
// of text, clipped to [MaxSummaryWords] words.
func FallbackSummary(text string) string {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return NoSummary
	}
	points := sentences[:min(3, len(sentences))]
	return ClipWords("Key points:\n- "+strings.Join(points, "\n- "), MaxSummaryWords)
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ClipWords keeps the first n words of s, preserving the separators between
// them.
func ClipWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	idx := wordRun.FindAllStringIndex(s, n+1)
	if len(idx) <= n {
		return s
	}
	return s[:idx[n-1][1]]
}
