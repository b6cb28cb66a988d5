package inference

import "strings"

const basePrompt = `You are an expert at solving multiple choice questions. The image shows exactly one multiple choice question with its options.

1. Read the question carefully.
2. Analyze every option.
3. Choose the correct answer.

Respond with ONLY the position of the correct option as a single digit: 1, 2, 3 or 4.
Count options from top to bottom starting at 1.
Never answer with a letter, never add explanations or any other text.`

// BuildPrompt returns the instruction sent with every question image.
// domainContext, when set, is appended to steer the model.
func BuildPrompt(domainContext string) string {
	domainContext = strings.TrimSpace(domainContext)
	if domainContext == "" {
		return basePrompt
	}
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nContext about the subject of these questions:\n")
	b.WriteString(domainContext)
	return b.String()
}
