package notation

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Rule names, in default precedence order.
const (
	RuleDegree     = "degree"
	RuleFunction   = "function"
	RuleSqrt       = "sqrt"
	RuleFraction   = "fraction"
	RulePower      = "power"
	RuleSubscript  = "subscript"
	RuleGreek      = "greek"
	RuleSymbol     = "symbol"
	RuleAssignment = "assignment"
)

// DefaultRules returns the rule set most specific first. Assignment is last:
// it is the loosest pattern and would otherwise swallow fractions and powers.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    RuleDegree,
			Pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)[ \t]*(?:°|degrees?\b|deg\b)`),
			Rewrite: func(m []string) string { return m[1] + `^\circ` },
		},
		{
			Name:    RuleFunction,
			Pattern: regexp.MustCompile(`\b(arcsin|arccos|arctan|sinh|cosh|tanh|sin|cos|tan|cot|sec|csc|log|ln|exp)[ \t]*\(([^()\n]+)\)`),
			Rewrite: func(m []string) string { return `\` + m[1] + "(" + greekToLatex(strings.TrimSpace(m[2])) + ")" },
		},
		{
			Name:    RuleSqrt,
			Pattern: regexp.MustCompile(`\bsqrt[ \t]*\(([^()\n]+)\)|√[ \t]*(?:\(([^()\n]+)\)|([A-Za-z0-9]+(?:\.[0-9]+)?))`),
			Rewrite: func(m []string) string {
				arg := firstNonEmpty(m[1], m[2], m[3])
				return `\sqrt{` + greekToLatex(strings.TrimSpace(arg)) + "}"
			},
		},
		{
			Name:    RuleFraction,
			Pattern: regexp.MustCompile(`\b(\d+|[A-Za-z])[ \t]*/[ \t]*(\d+|[A-Za-z])\b`),
			Rewrite: func(m []string) string { return `\frac{` + m[1] + "}{" + m[2] + "}" },
			Skip:    ambiguousFraction,
		},
		{
			Name:    RulePower,
			Pattern: regexp.MustCompile(`\b([A-Za-z0-9]+(?:_(?:\{[^{}\n]*\}|[A-Za-z0-9]))?)\^(\{[^{}\n]*\}|-?[A-Za-z0-9]+)`),
			Rewrite: func(m []string) string { return withSubscript(m[1]) + "^" + braceMulti(m[2]) },
			Skip:    followedBy('^', '_'),
		},
		{
			Name:    RuleSubscript,
			Pattern: regexp.MustCompile(`\b([A-Za-z])_(?:\{([^{}\n]*)\}|([A-Za-z0-9]+)\b)`),
			Rewrite: func(m []string) string { return m[1] + "_{" + firstNonEmpty(m[2], m[3]) + "}" },
			Skip:    followedBy('^', '_'),
		},
		{
			Name:    RuleGreek,
			Pattern: greekPattern,
			Rewrite: func(m []string) string { return greekBody(m[0]) },
		},
		{
			Name:    RuleSymbol,
			Pattern: regexp.MustCompile(`<->|->|=>|\+-|<=|>=|!=|[→⇒↔±×÷≤≥≠≈∞·]`),
			Rewrite: func(m []string) string { return symbols[m[0]] },
		},
		{
			Name:    RuleAssignment,
			Pattern: assignmentPattern,
			Rewrite: func(m []string) string { return m[0] },
		},
	}
}

var symbols = map[string]string{
	"<->": `\leftrightarrow`, "↔": `\leftrightarrow`,
	"->": `\rightarrow`, "→": `\rightarrow`,
	"=>": `\Rightarrow`, "⇒": `\Rightarrow`,
	"+-": `\pm`, "±": `\pm`,
	"<=": `\leq`, "≤": `\leq`,
	">=": `\geq`, "≥": `\geq`,
	"!=": `\neq`, "≠": `\neq`,
	"×": `\times`, "÷": `\div`, "≈": `\approx`, "∞": `\infty`, "·": `\cdot`,
}

// greekWords are the spelled-out names that have a LaTeX command of the same
// spelling. Capitalised forms only where LaTeX has an uppercase letter;
// "Pi" is left out since at a sentence start it is usually just a word.
var greekWords = map[string]struct{}{
	"alpha": {}, "beta": {}, "gamma": {}, "delta": {}, "epsilon": {}, "zeta": {},
	"eta": {}, "theta": {}, "iota": {}, "kappa": {}, "lambda": {}, "mu": {},
	"nu": {}, "xi": {}, "pi": {}, "rho": {}, "sigma": {}, "tau": {},
	"upsilon": {}, "phi": {}, "chi": {}, "psi": {}, "omega": {},
	"Gamma": {}, "Delta": {}, "Theta": {}, "Lambda": {}, "Xi": {},
	"Sigma": {}, "Upsilon": {}, "Phi": {}, "Psi": {}, "Omega": {},
}

var greekRunes = map[rune]string{
	'α': "alpha", 'β': "beta", 'γ': "gamma", 'δ': "delta", 'ε': "epsilon", 'ζ': "zeta",
	'η': "eta", 'θ': "theta", 'ι': "iota", 'κ': "kappa", 'λ': "lambda", 'μ': "mu",
	'ν': "nu", 'ξ': "xi", 'π': "pi", 'ρ': "rho", 'σ': "sigma", 'τ': "tau",
	'υ': "upsilon", 'φ': "phi", 'χ': "chi", 'ψ': "psi", 'ω': "omega",
	'Γ': "Gamma", 'Δ': "Delta", 'Θ': "Theta", 'Λ': "Lambda", 'Ξ': "Xi", 'Π': "Pi",
	'Σ': "Sigma", 'Υ': "Upsilon", 'Φ': "Phi", 'Ψ': "Psi", 'Ω': "Omega",
}

var greekPattern = func() *regexp.Regexp {
	words := make([]string, 0, len(greekWords))
	for w := range greekWords {
		words = append(words, w)
	}
	// longest first so "epsilon" is tried before "psi"
	slices.SortFunc(words, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	var runes strings.Builder
	for r := range greekRunes {
		runes.WriteRune(r)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)\b|[` + runes.String() + `]+`)
}()

var assignmentPattern = func() *regexp.Regexp {
	const (
		term = `(?:-?\d+(?:\.\d+)?(?:[A-Za-z]{1,2}\b)?|-?[A-Za-z]\b|\([^()\n$]*\))(?:\^-?[A-Za-z0-9]+)?`
		sep  = `(?:[ \t]*[-+*/=][ \t]*|[ \t]+)`
	)
	return regexp.MustCompile(`\b[A-Za-z]{1,2}'?[ \t]*=[ \t]*` + term + `(?:` + sep + term + `)*`)
}()

// greekToLatex rewrites Greek letters (spelled or Unicode) inside a math body
// that another rule already produced.
func greekToLatex(s string) string {
	locs := greekPattern.FindAllStringIndex(s, -1)
	if locs == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, l := range locs {
		b.WriteString(s[last:l[0]])
		b.WriteString(greekBody(s[l[0]:l[1]]))
		if isASCIILetter(runeAfter(s, l[1])) {
			b.WriteByte(' ')
		}
		last = l[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func greekBody(m string) string {
	if _, ok := greekWords[m]; ok {
		return `\` + m
	}
	cmds := make([]string, 0, utf8.RuneCountInString(m))
	for _, r := range m {
		cmds = append(cmds, `\`+greekRunes[r])
	}
	return strings.Join(cmds, " ")
}

// ambiguousFraction skips a/b when it is part of a longer slash chain
// (dates, paths, units like m/s/s), the tail of a decimal, or when either
// operand carries a power or subscript (x/y^2, m/s^2, x^2/y). Those are
// left to the power and subscript rules.
func ambiguousFraction(text string, start, end int) bool {
	if nonSpaceBefore(text, start) == '/' || nonSpaceAfter(text, end) == '/' {
		return true
	}
	if r := runeAfter(text, end); r == '^' || r == '_' {
		return true
	}
	if r := runeBefore(text, start); r == '^' || r == '_' {
		return true
	}
	if runeBefore(text, start) == '.' {
		return true
	}
	if runeAfter(text, end) == '.' && end+1 < len(text) && text[end+1] >= '0' && text[end+1] <= '9' {
		return true
	}
	return false
}

func followedBy(rs ...rune) func(string, int, int) bool {
	return func(text string, _, end int) bool {
		next := runeAfter(text, end)
		for _, r := range rs {
			if next == r {
				return true
			}
		}
		return false
	}
}

func withSubscript(base string) string {
	i := strings.IndexByte(base, '_')
	if i < 0 {
		return base
	}
	sub := base[i+1:]
	if !strings.HasPrefix(sub, "{") {
		sub = "{" + sub + "}"
	}
	return base[:i] + "_" + sub
}

func braceMulti(exp string) string {
	if strings.HasPrefix(exp, "{") || utf8.RuneCountInString(exp) == 1 {
		return exp
	}
	return "{" + exp + "}"
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

