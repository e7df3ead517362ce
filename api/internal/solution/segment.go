package solution

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxSubHeaderLen bounds what still counts as a bold sub-header line; longer
// bold lines are ordinary emphasised content.
const maxSubHeaderLen = 80

// sectionLine matches the unwrapped text of a boundary line:
// "SECTION 3: CONCEPT IDENTIFICATION", "Section 2 - Solution", "SECTION 4".
var sectionLine = regexp.MustCompile(`(?i)^section\s+(\d+)\b\s*[:.)\-–]?\s*(.*)$`)

type segState int

const (
	seekingHeader segState = iota
	accumulating
)

// segmenter is the line state machine. Lines seen while seeking a header are
// dropped; if no header ever shows up the whole input becomes the fallback.
type segmenter struct {
	state segState
	title string
	body  []string
	out   []Segment
}

// Split groups text into titled segments at "**SECTION n: Title**"-style
// boundary lines. Text with no boundary becomes one fallback segment; empty
// or blank input yields an empty document.
func Split(text string) Document {
	if strings.TrimSpace(text) == "" {
		return Document{}
	}
	s := &segmenter{}
	for _, line := range strings.Split(text, "\n") {
		s.feed(strings.TrimRight(line, " \t\r"))
	}
	s.closeOpen()

	if len(s.out) == 0 {
		content := strings.TrimSpace(text)
		s.out = append(s.out, Segment{
			Order:      0,
			Title:      FallbackTitle,
			RawContent: content,
			Category:   Classify(content),
		})
	}
	return Document{Segments: s.out}
}

func (s *segmenter) feed(line string) {
	trimmed := strings.TrimSpace(line)

	if title, ok := boundaryTitle(trimmed); ok {
		s.closeOpen()
		s.state = accumulating
		s.title = title
		s.body = s.body[:0]
		return
	}

	if s.state == seekingHeader {
		return
	}

	if sub, ok := subHeader(trimmed); ok {
		s.body = append(s.body, "#### "+sub)
		return
	}
	if trimmed == "" {
		// keep one blank separator, never a run of them
		if n := len(s.body); n == 0 || s.body[n-1] == "" {
			return
		}
	}
	s.body = append(s.body, line)
}

// closeOpen emits the open segment, if any. Title-only segments are kept so
// a section the model announced but left empty is still visible.
func (s *segmenter) closeOpen() {
	if s.state != accumulating {
		return
	}
	content := strings.TrimSpace(strings.Join(s.body, "\n"))
	s.out = append(s.out, Segment{
		Order:      len(s.out),
		Title:      s.title,
		RawContent: content,
		Category:   Classify(s.title + "\n" + content),
	})
	s.state = seekingHeader
	s.title = ""
	s.body = s.body[:0]
}

// boundaryTitle recognises a whole-line section marker. The marker must be
// emphasised (**...**, __...__), bracketed, or a markdown heading, so prose
// like "see section 2 of the book" is not a boundary.
func boundaryTitle(line string) (string, bool) {
	inner, ok := unwrapMarker(line)
	if !ok {
		return "", false
	}
	m := sectionLine.FindStringSubmatch(inner)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(m[2])
	if i := strings.Index(inner, ":"); i >= 0 {
		title = strings.TrimSpace(inner[i+1:])
	}
	title = strings.TrimSpace(strings.Trim(title, "*_"))
	if title == "" {
		title = fmt.Sprintf("Section %s", m[1])
	}
	return title, true
}

func unwrapMarker(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "#"):
		return strings.ReplaceAll(strings.TrimSpace(strings.TrimLeft(line, "#")), "**", ""), true
	case len(line) > 4 && strings.HasPrefix(line, "**") && strings.Count(line, "**")%2 == 0:
		// "**SECTION 1: ANALYSIS**" and "**SECTION 1:** ANALYSIS"
		return strings.TrimSpace(strings.ReplaceAll(line, "**", "")), true
	case len(line) > 4 && strings.HasPrefix(line, "__") && strings.HasSuffix(line, "__"):
		return strings.TrimSpace(line[2 : len(line)-2]), true
	case len(line) > 2 && strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return strings.TrimSpace(strings.ReplaceAll(line[1:len(line)-1], "**", "")), true
	}
	return "", false
}

// subHeader recognises a short line that is bold from end to end.
func subHeader(line string) (string, bool) {
	if len(line) <= 4 || !strings.HasPrefix(line, "**") || !strings.HasSuffix(line, "**") {
		return "", false
	}
	inner := strings.TrimSpace(line[2 : len(line)-2])
	if inner == "" || strings.Contains(inner, "**") || utf8.RuneCountInString(inner) > maxSubHeaderLen {
		return "", false
	}
	return inner, true
}
