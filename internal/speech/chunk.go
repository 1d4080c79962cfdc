package speech

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkChars is the chunk size limit used when none is configured.
const DefaultMaxChunkChars = 250

// sentencePattern matches a sentence with its terminators, or a trailing run
// without one. Runs of punctuation ("Wait...", "?!") stay with their sentence.
var sentencePattern = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+`)

// SplitChunks splits text into speakable chunks of at most max runes,
// preferring sentence boundaries.
//
// Whole sentences are accumulated into a chunk until the next one would push
// it over max. A sentence longer than max is broken between words; a single
// word longer than max becomes a chunk of its own. Chunks are trimmed and
// never empty, and apart from whitespace their concatenation equals text.
func SplitChunks(text string, max int) []string {
	if max <= 0 {
		max = DefaultMaxChunkChars
	}

	var (
		chunks []string
		cur    string
	)
	flush := func() {
		if s := strings.TrimSpace(cur); s != "" {
			chunks = append(chunks, s)
		}
		cur = ""
	}

	for _, sentence := range sentencePattern.FindAllString(text, -1) {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		if runeLen(strings.TrimSpace(cur+sentence)) <= max {
			cur += sentence
			continue
		}
		flush()
		if runeLen(trimmed) <= max {
			cur = sentence
			continue
		}
		chunks = append(chunks, splitWords(trimmed, max)...)
	}
	flush()
	return chunks
}

// splitWords packs the words of s into space-joined pieces of at most max
// runes. Overlong words are kept whole.
func splitWords(s string, max int) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, w := range strings.Fields(s) {
		if cur.Len() > 0 && runeLen(cur.String())+1+runeLen(w) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
