package gateway

// System prompts sent with every content request.
const (
	summarySystemPrompt = `You write dyslexia-friendly summaries. Use short sentences and simple words. Output JSON only: {"summary":"..."}. Keep under 80 words.`

	quizSystemPrompt = `You create dyslexia-friendly multiple choice quizzes. Output JSON only: {"questions":[{"question":"...","options":["A","B","C","D"],"answer":0}]}. Rules: 3-5 questions, short and clear, 4 options, answer 0-3.`
)

func systemPrompt(t ContentType) string {
	if t == TypeQuiz {
		return quizSystemPrompt
	}
	return summarySystemPrompt
}

func userPrompt(t ContentType, text string) string {
	if t == TypeQuiz {
		return "Create a quiz about this text:\n" + text
	}
	return "Summarize this text:\n" + text
}
