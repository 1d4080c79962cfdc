package support

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// HelplineMessage is shown whenever a conversation signals a crisis.
const HelplineMessage = "I am concerned. If you are thinking of harming yourself, please contact emergency services immediately or use a local helpline. In India call 9152987821, in US call 988."

var crisisPattern = regexp.MustCompile(`(?i)\b(suicide|kill myself|harm myself|hurt myself|want to die)\b`)

// crisisWords are the single-word phrases that are also matched when
// misspelled.
var crisisWords = []string{"suicide"}

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a misspelling.
const fuzzyThreshold = 0.88

// minFuzzyLen keeps short words from matching by accident.
const minFuzzyLen = 5

// DetectCrisis reports whether text mentions self-harm. The fixed phrase
// list is matched case-insensitively on word boundaries; single-word phrases
// are also matched when a token is spelled closely enough and sounds the same.
func DetectCrisis(text string) bool {
	if crisisPattern.MatchString(text) {
		return true
	}
	for _, tok := range tokens(text) {
		if len([]rune(tok)) < minFuzzyLen {
			continue
		}
		for _, w := range crisisWords {
			if soundsLike(tok, w) && matchr.JaroWinkler(tok, w, false) >= fuzzyThreshold {
				return true
			}
		}
	}
	return false
}

// soundsLike reports whether a and b share a Double Metaphone code.
func soundsLike(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

// tokens lowercases text and splits it into runs of letters.
func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
