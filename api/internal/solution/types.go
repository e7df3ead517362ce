package solution

import "strings"

// Category is the semantic role of one segment.
type Category string

const (
	CategoryAnalysis    Category = "analysis"
	CategoryStep        Category = "step"
	CategoryFinalAnswer Category = "finalAnswer"
	CategoryEquation    Category = "equation"
	CategoryFormula     Category = "formula"
	CategoryPlainText   Category = "plainText"
)

// Categories lists every category in classification precedence order.
var Categories = []Category{
	CategoryAnalysis,
	CategoryStep,
	CategoryFinalAnswer,
	CategoryEquation,
	CategoryFormula,
	CategoryPlainText,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// FallbackTitle names the single segment produced when the answer carries no
// section markers.
const FallbackTitle = "Complete Solution"

// Segment is one titled block of a solved answer.
type Segment struct {
	Order      int      `json:"order"`
	Title      string   `json:"title"`
	RawContent string   `json:"raw_content"`
	Category   Category `json:"category"`
}

// Document is the ordered list of segments; slice order is display order.
type Document struct {
	Segments []Segment `json:"segments"`
}

// Empty reports whether there is nothing to render.
func (d Document) Empty() bool { return len(d.Segments) == 0 }

// Text flattens the document back into markdown-ish text, used when a
// previous answer has to be quoted to the model.
func (d Document) Text() string {
	var b strings.Builder
	for i, s := range d.Segments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Title != "" {
			b.WriteString("**" + s.Title + "**\n")
		}
		b.WriteString(s.RawContent)
	}
	return b.String()
}
