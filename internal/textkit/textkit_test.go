package textkit

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"collapses whitespace", "  A cat\n\tsat   here. ", 0, "A cat sat here."},
		{"empty", " \n\t ", 0, ""},
		{"truncates", "abcdef", 3, "abc"},
		{"rune safe", "héllo wörld", 4, "héll"},
		{"trims after cut", "ab cd", 3, "ab"},
		{"unicode spaces", "Cats\u00a0\u00a0sleep.\u2003\u2003Dogs\v\vbark.\u3000 Birds\u2028sing.\u00a0", 0, "Cats sleep. Dogs bark. Birds sing."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in, tc.max); got != tc.want {
				t.Errorf("Normalize(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}

	long := strings.Repeat("word ", 1000)
	if got := Normalize(long, 0); utf8.RuneCountInString(got) > DefaultMaxInputChars {
		t.Errorf("Normalize default length = %d, want <= %d", utf8.RuneCountInString(got), DefaultMaxInputChars)
	}
}

func TestSimplify(t *testing.T) {
	in := "We  Utilize teamwork to FACILITATE cognition.\nUtilized words stay."
	want := "We use teamwork to support thinking. Utilized words stay."
	if got := Simplify(in); got != want {
		t.Errorf("Simplify = %q, want %q", got, want)
	}
	if got := Simplify("We\u00a0\u00a0comprehend it"); got != "We understand it" {
		t.Errorf("Simplify(nbsp) = %q, want %q", got, "We understand it")
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("One. Two!\nThree?  ... Four")
	want := []string{"One", "Two", "Three", "Four"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sentences = %q, want %q", got, want)
	}
}

func TestExtractiveSummary(t *testing.T) {
	if got := ExtractiveSummary("  "); got != nil {
		t.Errorf("ExtractiveSummary(empty) = %q, want nil", got)
	}
	got := ExtractiveSummary("A. B. C.")
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractiveSummary(3) = %q, want %q", got, want)
	}
	got = ExtractiveSummary("A. B. C. D.")
	if len(got) != 4 || got[3] != reflectionPrompt {
		t.Errorf("ExtractiveSummary(4) = %q, want reflection prompt appended", got)
	}
}

func TestFallbackSummary(t *testing.T) {
	got := FallbackSummary("A cat sat on a mat. The cat was happy. The mat was red. It rained.")
	want := "Key points:\n- A cat sat on a mat\n- The cat was happy\n- The mat was red"
	if got != want {
		t.Errorf("FallbackSummary = %q, want %q", got, want)
	}
	if got := FallbackSummary("..."); got != NoSummary {
		t.Errorf("FallbackSummary(no sentences) = %q, want %q", got, NoSummary)
	}

	long := strings.Repeat("word ", 200) + "."
	if n := WordCount(FallbackSummary(long)); n > MaxSummaryWords {
		t.Errorf("FallbackSummary word count = %d, want <= %d", n, MaxSummaryWords)
	}
}

func TestClipWords(t *testing.T) {
	if got := ClipWords("a b\nc d", 3); got != "a b\nc" {
		t.Errorf("ClipWords = %q, want %q", got, "a b\nc")
	}
	if got := ClipWords("a b", 5); got != "a b" {
		t.Errorf("ClipWords(short) = %q", got)
	}
	if got := ClipWords("a\u00a0b c", 1); got != "a" {
		t.Errorf("ClipWords(nbsp) = %q, want %q", got, "a")
	}
}

func TestKeywords(t *testing.T) {
	text := "Plants need water. Plants need light. Sunlight helps plants grow. Water keeps roots healthy."
	got := Keywords(text, 3)
	want := []string{"plants", "water", "light"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %q, want %q", got, want)
	}

	// Ties keep first-occurrence order and stop words are skipped.
	got = Keywords("zebra there apple zebra apple", 2)
	if want := []string{"zebra", "apple"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords(ties) = %q, want %q", got, want)
	}
}

func TestFallbackQuiz(t *testing.T) {
	quiz := FallbackQuiz("Volcanoes erupt lava. Volcanoes form mountains. Magma cools.")
	if err := ValidateQuiz(quiz); err != nil {
		t.Fatalf("FallbackQuiz is invalid: %v", err)
	}
	if quiz[0].Options[0] != "volcanoes" {
		t.Errorf("topic option = %q, want volcanoes", quiz[0].Options[0])
	}
	for i, q := range quiz {
		if q.Answer != 0 {
			t.Errorf("question %d answer = %d, want 0", i, q.Answer)
		}
	}

	empty := FallbackQuiz("")
	if err := ValidateQuiz(empty); err != nil {
		t.Fatalf("FallbackQuiz(empty) is invalid: %v", err)
	}
	if empty[0].Options[0] != "the topic" || empty[1].Options[0] != "the topic" {
		t.Errorf("empty quiz options = %q / %q, want the topic", empty[0].Options[0], empty[1].Options[0])
	}
}

func TestValidateQuiz(t *testing.T) {
	valid := QuizQuestion{Question: "Q?", Options: []string{"a", "b", "c", "d"}, Answer: 3}
	tests := []struct {
		name    string
		quiz    []QuizQuestion
		wantErr bool
	}{
		{"three valid", []QuizQuestion{valid, valid, valid}, false},
		{"five valid", []QuizQuestion{valid, valid, valid, valid, valid}, false},
		{"too few", []QuizQuestion{valid, valid}, true},
		{"too many", []QuizQuestion{valid, valid, valid, valid, valid, valid}, true},
		{"three options", []QuizQuestion{valid, valid, {Question: "Q1?", Options: []string{"A", "B", "C"}}}, true},
		{"answer out of range", []QuizQuestion{valid, valid, {Question: "Q?", Options: valid.Options, Answer: 4}}, true},
		{"negative answer", []QuizQuestion{valid, valid, {Question: "Q?", Options: valid.Options, Answer: -1}}, true},
		{"blank option", []QuizQuestion{valid, valid, {Question: "Q?", Options: []string{"a", " ", "c", "d"}}}, true},
		{"missing question", []QuizQuestion{valid, valid, {Options: valid.Options}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuiz(tc.quiz)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateQuiz err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestMindMap(t *testing.T) {
	if got := MindMap(""); got != nil {
		t.Errorf("MindMap(empty) = %v, want nil", got)
	}

	nodes := MindMap("Rivers carry water. Rivers shape valleys. Water feeds crops.")
	if len(nodes) != 3 {
		t.Fatalf("len = %d, want 3", len(nodes))
	}
	if nodes[0].Topic != "rivers" || nodes[1].Topic != "water" {
		t.Errorf("topics = %s, %s; want rivers, water", nodes[0].Topic, nodes[1].Topic)
	}
	want := []string{"carry", "water", "shape", "valleys", "feeds", "crops"}
	if !reflect.DeepEqual(nodes[0].Children, want) {
		t.Errorf("children = %q, want %q", nodes[0].Children, want)
	}

	spaced := MindMap("cats\u00a0sleep\u3000cats")
	if len(spaced) == 0 || spaced[0].Topic != "cats" || !reflect.DeepEqual(spaced[0].Children, []string{"sleep"}) {
		t.Errorf("MindMap(unicode spaces) = %+v, want topic cats with child sleep", spaced)
	}

	single := MindMap("dragons")
	if len(single) != 1 || !reflect.DeepEqual(single[0].Children, []string{emptyBranch}) {
		t.Errorf("MindMap(single) = %+v", single)
	}
}
