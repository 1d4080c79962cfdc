package gateway

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned by [ExtractJSON] when the model output contains no
// brace-delimited object.
var ErrNoJSON = errors.New("gateway: no JSON object in model output")

var (
	tagPattern           = regexp.MustCompile(`<[^>]+>`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([\]}])`)
	quoteReplacer        = strings.NewReplacer(
		"‘", "'", "’", "'",
		"“", `"`, "”", `"`,
	)
)

// ExtractJSON pulls the JSON object out of free-form model output.
//
// It is a tolerant adapter for an upstream that is told to answer with JSON
// only but regularly wraps it in prose, markdown or HTML. It takes the text
// from the first '{' to the last '}', strips anything that looks like a tag,
// drops trailing commas before a closing bracket and maps typographic quotes
// to ASCII ones. It does not check that the result parses.
func ExtractJSON(raw string) ([]byte, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	s := raw[start : end+1]
	s = tagPattern.ReplaceAllString(s, "")
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	s = quoteReplacer.Replace(s)
	return []byte(s), nil
}
