// Package solution turns a raw model answer into an ordered list of titled,
// classified segments with normalised math markup.
package solution

import (
	"golang.org/x/text/unicode/norm"

	"jee-solver/api/internal/notation"
)

// Build runs the whole pipeline over a raw answer: Unicode NFC (so composed
// and decomposed "°" or Greek letters match the same rules), notation
// normalisation, then segmentation.
func Build(raw string) Document {
	return Split(notation.Normalize(norm.NFC.String(raw)))
}
