package llm

import (
	"context"
	"strings"
)

const codeFence = "```"

// Rewriter turns the starter template into a personalized document.
type Rewriter struct {
	generator Generator
}

// NewRewriter creates a rewriter backed by generator.
func NewRewriter(generator Generator) (rewriter *Rewriter) {
	rewriter = &Rewriter{generator: generator}
	return rewriter
}

// Provider names the backing generator.
func (r *Rewriter) Provider() (name string) {
	name = r.generator.Name()
	return name
}

// Rewrite sends the template and user text to the generator and returns the
// extracted document. There is no retry: one failed call fails the rewrite.
func (r *Rewriter) Rewrite(ctx context.Context, templateText, userText string) (rewritten string, err error) {
	prompt := buildRewritePrompt(templateText, userText)

	var responseText string
	responseText, err = r.generator.GenerateText(ctx, prompt)
	if err != nil {
		return rewritten, err
	}

	if strings.TrimSpace(responseText) == "" {
		err = serviceError(nil, "empty response from "+r.generator.Name())
		return rewritten, err
	}

	rewritten = ExtractCodeBlock(responseText)
	return rewritten, err
}

// ExtractCodeBlock returns the interior of the outermost fenced code block in
// text, with an optional language tag on the opening line dropped. Text with
// no fence, or with an opening fence and no closing one, is returned unchanged.
func ExtractCodeBlock(text string) (extracted string) {
	extracted = text

	open := strings.Index(text, codeFence)
	if open == -1 {
		return extracted
	}

	start := open + len(codeFence)
	end := strings.LastIndex(text, codeFence)
	if end < start {
		return extracted
	}

	// Drop a language tag such as "latex" or "tex" on the opening line.
	if nl := strings.IndexByte(text[start:end], '\n'); nl != -1 && isLanguageTag(text[start:start+nl]) {
		start += nl + 1
	} else if nl == -1 && isLanguageTag(text[start:end]) {
		start = end
	}

	extracted = strings.TrimSpace(text[start:end])
	return extracted
}

func isLanguageTag(s string) (ok bool) {
	s = strings.TrimRight(s, " \t\r")
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' && r != '_' && r != '+' {
			return ok
		}
	}
	ok = true
	return ok
}
