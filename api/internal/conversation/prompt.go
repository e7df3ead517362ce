package conversation

import (
	"strings"
)

// NotAvailable stands in for a snapshot field that was never recorded.
const NotAvailable = "N/A"

// PromptTemplate holds the fixed text around the snapshot fields of a
// follow-up prompt. Both parts can be replaced from the prompt pack.
type PromptTemplate struct {
	Preamble     string `yaml:"preamble"`
	Instructions string `yaml:"instructions"`
}

var DefaultPromptTemplate = PromptTemplate{
	Preamble: "You are continuing a conversation about a JEE question. Here's the context:",
	Instructions: "Please provide a helpful, detailed response. Use LaTeX notation for mathematical " +
		"expressions ($ for inline, $$ for display math). If the user is asking for clarification, " +
		"provide more detailed explanations. If asking about related concepts, explain those as well.",
}

// BuildFollowUpPrompt renders the default template. It only reads c.
func BuildFollowUpPrompt(c *Context, userMessage string) string {
	return DefaultPromptTemplate.Build(c, userMessage)
}

// Build is deterministic: the same context and message always give the same
// prompt.
func (t PromptTemplate) Build(c *Context, userMessage string) string {
	if t.Preamble == "" {
		t.Preamble = DefaultPromptTemplate.Preamble
	}
	if t.Instructions == "" {
		t.Instructions = DefaultPromptTemplate.Instructions
	}

	var question, extracted, previous string
	if c != nil {
		question, extracted = c.LastQuestionText, c.LastExtractedText
		if c.LastSolution != nil {
			previous = c.LastSolution.Text()
		}
	}

	var b strings.Builder
	b.WriteString(t.Preamble)
	b.WriteString("\n\nORIGINAL QUESTION: ")
	b.WriteString(orNA(question))
	b.WriteString("\nEXTRACTED TEXT: ")
	b.WriteString(orNA(extracted))
	b.WriteString("\nPREVIOUS SOLUTION: ")
	b.WriteString(orNA(previous))
	b.WriteString("\n\nUSER'S FOLLOW-UP QUESTION: ")
	b.WriteString(strings.TrimSpace(userMessage))
	b.WriteString("\n\n")
	b.WriteString(t.Instructions)
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}
