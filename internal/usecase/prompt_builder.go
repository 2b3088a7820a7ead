package usecase

import (
	"fmt"
	"strings"
)

// SummaryPromptInput contains the pieces that feed into the prompt builder.
type SummaryPromptInput struct {
	PromptVersion string
	Context       string
	// Focus is an optional instruction such as "sentencing" or "bail conditions".
	Focus string
}

// PromptBuilder builds the summarization prompt sent to the LLM.
type PromptBuilder interface {
	Build(input SummaryPromptInput) (string, error)
}

// XMLPromptBuilder creates structured prompts that separate instructions, context and focus.
type XMLPromptBuilder struct {
	additionalInstructions []string
}

// NewXMLPromptBuilder creates a prompt builder with optional extra instructions appended.
func NewXMLPromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &XMLPromptBuilder{
		additionalInstructions: additionalInstructions,
	}
}

// Build renders the prompt.
func (b *XMLPromptBuilder) Build(input SummaryPromptInput) (string, error) {
	if input.PromptVersion == "" {
		return "", fmt.Errorf("prompt version is required")
	}
	if strings.TrimSpace(input.Context) == "" {
		return "", fmt.Errorf("context is required")
	}

	instructions := []string{
		"You are a legal research assistant summarizing Indian court judgments.",
		"1. Use ONLY the material inside <context>.",
		"2. Cover the facts, the issues, the provisions applied and the decision.",
		"3. When a provision appears under [DARK ZONE RESOLUTIONS], explain it in plain language using the resolution text.",
		"4. Cite excerpts as [Excerpt N] and provisions by their label, e.g. IPC Section 302.",
		"5. Do not invent case numbers, dates or holdings.",
	}

	var sb strings.Builder
	sb.WriteString("<instructions>\n")
	for _, inst := range append(instructions, b.additionalInstructions...) {
		sb.WriteString("  <line>")
		sb.WriteString(escape(inst))
		sb.WriteString("</line>\n")
	}
	sb.WriteString("</instructions>\n\n")

	if focus := strings.TrimSpace(input.Focus); focus != "" {
		sb.WriteString("<focus>")
		sb.WriteString(escape(focus))
		sb.WriteString("</focus>\n\n")
	}

	sb.WriteString(fmt.Sprintf("<context version=\"%s\">\n", escape(input.PromptVersion)))
	sb.WriteString(escape(input.Context))
	sb.WriteString("\n</context>\n")

	return sb.String(), nil
}

func escape(value string) string {
	s := strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
