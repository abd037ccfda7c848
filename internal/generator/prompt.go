package generator

import "fmt"

const contextPromptTemplate = `Transform the following presentation speaker notes into a clear, engaging message for students in %s language.

Speaker Notes:
%s

IMPORTANT REQUIREMENTS:
1. Generate a concise message (2-4 SHORT sentences, each under 100 characters in length and total message under 250 characters)
2. Use simple, clear language suitable for text-to-speech
3. Avoid special characters, symbols, or unusual punctuation
4. Use standard sentence-ending punctuation (periods, question marks)
5. Return ONLY the message text, no explanations or formatting`

const welcomePromptTemplate = `Generate a warm, welcoming presentation introduction message for a classroom presentation in %s. Keep it brief (1-2 SHORT sentences, each under 100 characters, total message under 150 characters). Use simple, clear language suitable for text-to-speech. Avoid special characters or unusual punctuation. Return ONLY the message text, no explanations.`

// BuildPrompt returns the generation prompt for language. An empty
// normalized context asks for a welcome message instead.
func BuildPrompt(language, normalizedContext string) string {
	if normalizedContext == "" {
		return fmt.Sprintf(welcomePromptTemplate, language)
	}
	return fmt.Sprintf(contextPromptTemplate, language, normalizedContext)
}
