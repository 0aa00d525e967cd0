package llm

import (
	"fmt"
)

// buildRewritePrompt asks the model to fill the LaTeX template with the user's details.
func buildRewritePrompt(templateText, userText string) (prompt string) {
	prompt = fmt.Sprintf(`You are a LaTeX expert who modifies CV templates based on user input.

Here is the user's input describing their CV details:
%s

Here is the LaTeX template to modify:
`+"```latex"+`
%s
`+"```"+`

Modify this LaTeX template to create a professional CV for the user.
Replace the placeholder information with the user's actual details and keep the template's structure.
Escape every '&' in the user's details by placing a '\' before it. Example: '\&'.
Only return the complete LaTeX code without any explanations.`, userText, templateText)

	return prompt
}
