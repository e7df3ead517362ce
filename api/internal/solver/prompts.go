package solver

import (
	"strings"

	"jee-solver/api/internal/conversation"
	"jee-solver/api/internal/util"
)

const defaultSolvePrompt = `You are an expert JEE (Joint Entrance Examination) tutor with deep knowledge in Physics, Chemistry, and Mathematics.

TASK: Analyze and solve the provided JEE question with a structured, sequential approach.

IMPORTANT: Format all mathematical expressions using LaTeX notation for MathJax rendering. Use $ for inline math and $$ for display math.

RESPONSE FORMAT - Provide exactly 6 structured sections:

**SECTION 1: QUESTION ANALYSIS**
- Subject area and topic identification
- Difficulty level assessment
- Key concepts overview

**SECTION 2: TEXT & CONTENT EXTRACTION**
- Extract all text, equations, and visual elements
- Describe any diagrams or graphs
- List multiple choice options if present

**SECTION 3: CONCEPT IDENTIFICATION**
- List relevant formulas (use LaTeX: $F = ma$, $E = mc^2$, etc.)
- Identify key principles and laws
- Required mathematical tools

**SECTION 4: SOLUTION STRATEGY**
- Outline the solution approach
- Identify the sequence of steps needed
- Choose the most efficient method

**SECTION 5: DETAILED CALCULATION**
- Step-by-step mathematical solution
- Show all work with proper LaTeX formatting
- Include intermediate results and explanations

**SECTION 6: FINAL ANSWER & VERIFICATION**
- Clear final answer with units
- Verification of the result
- Common mistakes to avoid

Each section should be clearly separated and use proper LaTeX formatting for all mathematical expressions.`

const defaultExtractPrompt = `Please extract ALL text content from this image, including:
- Question text
- Mathematical equations and expressions (format with LaTeX when possible)
- Numbers, measurements, and units
- Any labels or annotations
- Multiple choice options if present

Format the extracted text clearly and preserve the original structure. Use LaTeX notation for mathematical expressions.`

const imageNote = "IMAGE: Please analyze the provided image carefully for any additional visual information, diagrams, graphs, or mathematical expressions."

// Prompts holds the model prompt texts. Empty fields fall back to the defaults.
type Prompts struct {
	Solve    string
	Extract  string
	FollowUp conversation.PromptTemplate
}

func DefaultPrompts() Prompts {
	return Prompts{
		Solve:    defaultSolvePrompt,
		Extract:  defaultExtractPrompt,
		FollowUp: conversation.DefaultPromptTemplate,
	}
}

// PromptsFromPack overlays a loaded prompt pack on the defaults.
func PromptsFromPack(p util.PromptPack) Prompts {
	out := DefaultPrompts()
	if s := strings.TrimSpace(p.Solve); s != "" {
		out.Solve = s
	}
	if s := strings.TrimSpace(p.Extract); s != "" {
		out.Extract = s
	}
	if s := strings.TrimSpace(p.FollowUp.Preamble); s != "" {
		out.FollowUp.Preamble = s
	}
	if s := strings.TrimSpace(p.FollowUp.Instructions); s != "" {
		out.FollowUp.Instructions = s
	}
	return out
}

// SolvePrompt appends the question text and the image note to the base prompt.
func (p Prompts) SolvePrompt(questionText string, hasImage bool) string {
	var b strings.Builder
	b.WriteString(p.Solve)
	if q := strings.TrimSpace(questionText); q != "" {
		b.WriteString("\n\nQUESTION TEXT:\n")
		b.WriteString(q)
	}
	if hasImage {
		b.WriteString("\n\n")
		b.WriteString(imageNote)
	}
	return b.String()
}
