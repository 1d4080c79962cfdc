package textkit

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	nonLetter = regexp.MustCompile(`[^a-z\s]`)
)

// stopWords are ignored by keyword ranking and mind maps.
var stopWords = map[string]bool{
	"with": true, "this": true, "that": true, "have": true, "from": true,
	"they": true, "them": true, "there": true, "their": true, "about": true,
	"into": true, "while": true, "where": true, "could": true, "would": true,
	"should": true, "along": true, "over": true, "these": true, "those": true,
	"your": true, "you're": true, "the": true, "and": true, "for": true,
	"are": true, "was": true, "were": true, "because": true, "after": true,
	"before": true, "what": true, "when": true,
}

// rankByFrequency orders distinct words by descending count. Ties keep
// first-occurrence order.
func rankByFrequency(words []string) []string {
	counts := make(map[string]int, len(words))
	var order []string
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	// Insertion sort is stable and the inputs are bounded by the input cap.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && counts[order[j]] > counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order
}

// Keywords returns up to n of the most frequent words in text that are
// longer than four letters and not stop words.
func Keywords(text string, n int) []string {
	fields := strings.Fields(nonLetter.ReplaceAllString(strings.ToLower(text), " "))
	words := fields[:0]
	for _, w := range fields {
		if len(w) > 4 && !stopWords[w] {
			words = append(words, w)
		}
	}
	ranked := rankByFrequency(words)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// MindMapNode is one topic of a mind map with its related words.
type MindMapNode struct {
	Topic    string   `json:"topic"`
	Children []string `json:"children"`
}

// emptyBranch is shown when a topic has no related words.
const emptyBranch = "Add your own ideas"

// MindMap builds up to three topic nodes from the most frequent words in
// text. Each topic lists up to six other distinct words in text order.
func MindMap(text string) []MindMapNode {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	stripped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, lower)

	var words []string
	for _, w := range strings.Fields(stripped) {
		if len(w) > 3 {
			words = append(words, w)
		}
	}

	var candidates []string
	for _, w := range words {
		if !stopWords[w] {
			candidates = append(candidates, w)
		}
	}
	topics := rankByFrequency(candidates)
	if len(topics) > 3 {
		topics = topics[:3]
	}

	nodes := make([]MindMapNode, 0, len(topics))
	for _, topic := range topics {
		var children []string
		seen := map[string]bool{}
		for _, w := range candidates {
			if w == topic || seen[w] {
				continue
			}
			seen[w] = true
			children = append(children, w)
			if len(children) == 6 {
				break
			}
		}
		if len(children) == 0 {
			children = []string{emptyBranch}
		}
		nodes = append(nodes, MindMapNode{Topic: topic, Children: children})
	}
	return nodes
}
