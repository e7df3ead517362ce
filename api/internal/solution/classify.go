package solution

import (
	"regexp"
	"strings"
)

// classifier is one entry of the ordered rule list: the first predicate that
// matches decides the category.
type classifier struct {
	category Category
	match    func(lead, block string) bool
}

var (
	analysisCue = regexp.MustCompile(`(?i)\b(analy[sz](is|e|ing)|given|question|subject|topic|difficulty|extract(ed|ion)?|problem statement)\b`)
	stepCue     = regexp.MustCompile(`(?i)\b(steps?|solution|solve|solving|approach|method|strategy|calculations?|procedure|working)\b`)
	finalCue    = regexp.MustCompile(`(?i)\b(answer|result|final|conclusion|therefore|hence|verification|verify)\b`)

	// a = b, x <= 3, $\alpha \neq 0$, 2 + 3
	equationLike = regexp.MustCompile(`[A-Za-z0-9)}\]]\s*(=|<|>|\\leq|\\geq|\\neq|\\approx)\s*[-A-Za-z0-9(\\{$]|\d\s*[-+*/×]\s*\d`)
	// \frac, \alpha, x^2, v_{0}, √, Greek letters
	formulaLike = regexp.MustCompile(`\\[A-Za-z]+|[A-Za-z0-9})]\^|[A-Za-z]_[{A-Za-z0-9]|[√∑∫∂αβγδεθλμπρστφωΔΣΩ]`)
)

// Role cues are read from the lead line only: section titles and the
// opening line carry the role, while body text mentions "given" or "answer"
// in passing. Content sniffing looks at the whole block.
var classifiers = []classifier{
	{CategoryAnalysis, func(lead, _ string) bool { return analysisCue.MatchString(lead) }},
	{CategoryStep, func(lead, _ string) bool { return stepCue.MatchString(lead) }},
	{CategoryFinalAnswer, func(lead, _ string) bool { return finalCue.MatchString(lead) }},
	{CategoryEquation, func(_, block string) bool { return equationLike.MatchString(block) }},
	{CategoryFormula, func(_, block string) bool { return formulaLike.MatchString(block) }},
}

// Classify returns exactly one category for block. It is a pure function of
// the text; a block matching nothing is plain text.
func Classify(block string) Category {
	lead := leadLine(block)
	for _, c := range classifiers {
		if c.match(lead, block) {
			return c.category
		}
	}
	return CategoryPlainText
}

func leadLine(block string) string {
	for _, line := range strings.Split(block, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}
