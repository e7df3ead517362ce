// Package render prepares solution documents for display: Markdown to HTML
// with delimited math passed through untouched for the browser typesetter,
// and plain text for chat clients.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"jee-solver/api/internal/mathspan"
	"jee-solver/api/internal/solution"
)

// NoContent is shown instead of a document that has no segments.
const NoContent = "No content was returned for this question. Please try again with a clearer image or question."

var md = goldmark.New()

// HTML renders Markdown. Math runs are hidden from goldmark, so `_` and `*`
// inside them never turn into emphasis, and come back HTML-escaped.
func HTML(markdown string) (string, error) {
	p := mathspan.NewProtector(markdown)
	protected := p.Protect(markdown)

	var buf bytes.Buffer
	if err := md.Convert([]byte(protected), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out := buf.String()
	spans := p.Spans()
	for i := len(spans) - 1; i >= 0; i-- {
		out = strings.Replace(out, spans[i].Token, html.EscapeString(spans[i].Original), 1)
	}
	return out, nil
}

type Segment struct {
	solution.Segment
	HTML     string `json:"html,omitempty"`
	CSSClass string `json:"css_class,omitempty"`
}

// Document renders every segment's content to HTML.
func Document(doc solution.Document) ([]Segment, error) {
	out := make([]Segment, 0, len(doc.Segments))
	for _, s := range doc.Segments {
		h, err := HTML(s.RawContent)
		if err != nil {
			return nil, err
		}
		out = append(out, Segment{Segment: s, HTML: h, CSSClass: CSSClass(s.Category)})
	}
	return out, nil
}

func CSSClass(c solution.Category) string {
	return "segment segment-" + strings.ToLower(string(c))
}

var labels = map[solution.Category]string{
	solution.CategoryAnalysis:    "🔍",
	solution.CategoryStep:        "🧭",
	solution.CategoryFinalAnswer: "✅",
	solution.CategoryEquation:    "🧮",
	solution.CategoryFormula:     "📐",
	solution.CategoryPlainText:   "📄",
}

// PlainText formats one segment for a chat message: marker, title, content.
func PlainText(s solution.Segment) string {
	var b strings.Builder
	if l, ok := labels[s.Category]; ok {
		b.WriteString(l)
		b.WriteByte(' ')
	}
	title := s.Title
	if title == "" {
		title = solution.FallbackTitle
	}
	b.WriteString(title)
	if c := strings.TrimSpace(s.RawContent); c != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.ReplaceAll(c, "#### ", ""))
	}
	return b.String()
}

// Messages splits a document into chat messages of at most limit bytes,
// one or more per segment. An empty document yields NoContent.
func Messages(doc solution.Document, limit int) []string {
	if doc.Empty() {
		return []string{NoContent}
	}
	var out []string
	for _, s := range doc.Segments {
		out = append(out, chunk(PlainText(s), limit)...)
	}
	return out
}

// chunk splits at line breaks and cuts an overlong line on a rune boundary.
// A rune wider than limit is emitted on its own.
func chunk(s string, limit int) []string {
	if limit <= 0 || len(s) <= limit {
		return []string{s}
	}
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(s, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(line)
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return out
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
