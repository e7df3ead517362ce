// Package notation rewrites informal math in model answers (x/y, v_0, alpha,
// sin(x), 30°) into inline $...$ markup. Text already in math delimiters is
// never touched.
package notation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"jee-solver/api/internal/mathspan"
)

// Rule is one pattern → markup rewrite. Rewrite gets the submatches of a
// single match and returns the math body without delimiters.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Rewrite func(m []string) string
	// Skip, when set, vetoes a match by looking at its surroundings.
	Skip func(text string, start, end int) bool
}

// Normalizer applies its rules in order; earlier rules win.
type Normalizer struct {
	rules []Rule
}

// New builds a Normalizer over rules in the given order.
func New(rules ...Rule) *Normalizer {
	return &Normalizer{rules: rules}
}

var std = New(DefaultRules()...)

// Normalize runs the default rule set over text.
func Normalize(text string) string {
	return std.Normalize(text)
}

// Normalize protects already-delimited math, applies every rule, and puts the
// protected runs back. Each rewrite is itself registered as protected, so no
// later rule (and no later call) can rewrite it again.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	p := mathspan.NewProtector(text)
	out := p.Protect(text)
	for _, r := range n.rules {
		out = n.apply(r, out, p)
	}
	return p.Restore(out)
}

// Rules returns the rule names in application order.
func (n *Normalizer) Rules() []string {
	names := make([]string, 0, len(n.rules))
	for _, r := range n.rules {
		names = append(names, r.Name)
	}
	return names
}

func (n *Normalizer) apply(r Rule, text string, p *mathspan.Protector) string {
	locs := r.Pattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 16*len(locs))
	last, wrappedEnd := 0, -1
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start == end || start == wrappedEnd {
			continue
		}
		if !safe(text, start, end, p) || (r.Skip != nil && r.Skip(text, start, end)) {
			continue
		}
		body := r.Rewrite(submatches(text, loc))
		if body == "" {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(p.Wrap("$" + body + "$"))
		last, wrappedEnd = end, end
	}
	b.WriteString(text[last:])
	return b.String()
}

// safe rejects matches that would cross a line, overlap protected math, or
// sit flush against a delimiter or an escape.
func safe(text string, start, end int, p *mathspan.Protector) bool {
	m := text[start:end]
	if strings.ContainsAny(m, "\n$") || p.Contains(m) {
		return false
	}
	if r := runeBefore(text, start); r == '$' || r == '\\' || p.IsPlaceholderRune(r) {
		return false
	}
	if r := runeAfter(text, end); r == '$' || p.IsPlaceholderRune(r) {
		return false
	}
	return true
}

func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if s, e := loc[2*i], loc[2*i+1]; s >= 0 {
			out[i] = text[s:e]
		}
	}
	return out
}

func runeBefore(s string, i int) rune {
	if i <= 0 {
		return 0
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return r
}

func runeAfter(s string, i int) rune {
	if i >= len(s) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r
}

// nonSpaceBefore / nonSpaceAfter skip blanks and tabs only.
func nonSpaceBefore(s string, i int) rune {
	for i > 0 {
		r, w := utf8.DecodeLastRuneInString(s[:i])
		if r != ' ' && r != '\t' {
			return r
		}
		i -= w
	}
	return 0
}

func nonSpaceAfter(s string, i int) rune {
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if r != ' ' && r != '\t' {
			return r
		}
		i += w
	}
	return 0
}
