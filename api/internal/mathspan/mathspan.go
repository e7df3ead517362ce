// Package mathspan shields already-delimited math ($...$, $$...$$, \(...\), \[...\])
// from text rewriting by swapping each run for an opaque placeholder token.
package mathspan

import (
	"strconv"
	"strings"
)

// Span is one delimited math run that was replaced by Token.
type Span struct {
	Token    string `json:"token"`
	Original string `json:"original"`
}

// Kind of a protected run.
type Kind int

const (
	KindInline Kind = iota
	KindDisplay
)

// Placeholder runes come from the Unicode private use area. A pair is picked
// per Protector so that neither rune occurs in the text being protected.
const (
	privateUseStart = 0xE000
	privateUseEnd   = 0xF8FF
)

// Protector keeps the spans of one protection pass. A single Protector may
// protect the same evolving text several times (the notation rules do that);
// tokens stay unique across those calls.
type Protector struct {
	open, close rune
	disabled    bool
	spans       []Span
}

// NewProtector picks placeholder runes that do not occur in text.
func NewProtector(text string) *Protector {
	for r := rune(privateUseStart); r+1 <= privateUseEnd; r += 2 {
		if !strings.ContainsRune(text, r) && !strings.ContainsRune(text, r+1) {
			return &Protector{open: r, close: r + 1}
		}
	}
	// every pair is taken; leave the text alone rather than risk a collision
	return &Protector{disabled: true}
}

// Protect swaps every delimited math run in text for a placeholder.
func (p *Protector) Protect(text string) string {
	if p.disabled || text == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))

	last := 0
	for i := 0; i < len(text); {
		end, ok := matchRun(text, i)
		if ok {
			b.WriteString(text[last:i])
			b.WriteString(p.record(text[i:end]))
			i, last = end, end
			continue
		}
		i += skipWidth(text, i)
	}
	b.WriteString(text[last:])
	return b.String()
}

// Restore puts the original runs back. Spans are restored newest first, so a
// run recorded late that swallowed an earlier token unfolds correctly.
func (p *Protector) Restore(text string) string {
	return Restore(text, p.spans)
}

// Spans returns the spans recorded so far, in the order they were found.
func (p *Protector) Spans() []Span {
	out := make([]Span, len(p.spans))
	copy(out, p.spans)
	return out
}

// Contains reports whether s holds any placeholder of this Protector.
func (p *Protector) Contains(s string) bool {
	if p.disabled {
		return false
	}
	return strings.ContainsRune(s, p.open) || strings.ContainsRune(s, p.close)
}

// IsPlaceholderRune reports whether r is one of this Protector's token runes.
func (p *Protector) IsPlaceholderRune(r rune) bool {
	return !p.disabled && (r == p.open || r == p.close)
}

// Wrap records s as already-delimited math and returns its token. Rewriters
// use it so their own output is never matched again.
func (p *Protector) Wrap(s string) string {
	if p.disabled {
		return s
	}
	return p.record(s)
}

func (p *Protector) record(original string) string {
	tok := string(p.open) + strconv.Itoa(len(p.spans)) + string(p.close)
	p.spans = append(p.spans, Span{Token: tok, Original: original})
	return tok
}

// Protect is the one-shot form: it returns the protected text and its spans.
func Protect(text string) (string, []Span) {
	p := NewProtector(text)
	out := p.Protect(text)
	return out, p.spans
}

// Restore replaces each token in text with its original run, exactly once.
func Restore(text string, spans []Span) string {
	for i := len(spans) - 1; i >= 0; i-- {
		text = strings.Replace(text, spans[i].Token, spans[i].Original, 1)
	}
	return text
}

// Find lists the delimited runs of text without rewriting it.
func Find(text string) []Run {
	var runs []Run
	for i := 0; i < len(text); {
		if end, ok := matchRun(text, i); ok {
			runs = append(runs, Run{Start: i, End: end, Kind: runKind(text[i:end])})
			i = end
			continue
		}
		i += skipWidth(text, i)
	}
	return runs
}

// Run is a delimited math run located by Find.
type Run struct {
	Start, End int
	Kind       Kind
}

func runKind(s string) Kind {
	if strings.HasPrefix(s, "$$") || strings.HasPrefix(s, `\[`) {
		return KindDisplay
	}
	return KindInline
}

// matchRun checks whether a delimited run opens at i and returns its end.
// Unclosed openers are not runs.
func matchRun(text string, i int) (int, bool) {
	switch text[i] {
	case '\\':
		if i+1 >= len(text) {
			return 0, false
		}
		switch text[i+1] {
		case '[':
			return closeAfter(text, i+2, `\]`, true)
		case '(':
			return closeAfter(text, i+2, `\)`, false)
		}
	case '$':
		if i+1 < len(text) && text[i+1] == '$' {
			return closeAfter(text, i+2, "$$", true)
		}
		return closeInlineDollar(text, i+1)
	}
	return 0, false
}

// skipWidth steps over an escape pair (\$, \\) or an unmatched opener so the
// scanner never treats its second byte as a fresh delimiter.
func skipWidth(text string, i int) int {
	if i+1 < len(text) {
		if text[i] == '\\' && (text[i+1] == '$' || text[i+1] == '\\') {
			return 2
		}
		if text[i] == '$' && text[i+1] == '$' {
			return 2
		}
	}
	return 1
}

func closeAfter(text string, from int, closer string, multiline bool) (int, bool) {
	if from > len(text) {
		return 0, false
	}
	j := strings.Index(text[from:], closer)
	if j < 0 {
		return 0, false
	}
	if !multiline && strings.ContainsRune(text[from:from+j], '\n') {
		return 0, false
	}
	return from + j + len(closer), true
}

// closeInlineDollar finds the closing $ of an inline run on the same line.
func closeInlineDollar(text string, from int) (int, bool) {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case '\n':
			return 0, false
		case '\\':
			j++ // escaped char inside math
		case '$':
			if j == from {
				return 0, false
			}
			return j + 1, true
		}
	}
	return 0, false
}
