// Package conversation keeps the bounded follow-up history of one solved
// question and builds the prompt for the next follow-up turn.
package conversation

import (
	"time"

	"jee-solver/api/internal/solution"
)

// MaxTurns bounds the history; older turns are dropped first.
const MaxTurns = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Sequence int64  `json:"sequence"`
}

// Context is the state of one conversation. Empty strings and a nil
// LastSolution mean "absent". It is a plain value; callers serialise access
// per conversation (see Manager).
type Context struct {
	Turns             []Turn             `json:"turns"`
	LastQuestionText  string             `json:"last_question_text,omitempty"`
	LastExtractedText string             `json:"last_extracted_text,omitempty"`
	LastSolution      *solution.Document `json:"last_solution,omitempty"`
	// NextSeq is the sequence the next turn gets. It survives Clear so
	// sequences stay strictly increasing for the life of the conversation.
	NextSeq   int64     `json:"next_seq"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New() *Context {
	return &Context{Turns: []Turn{}}
}

// RecordSolved overwrites the snapshot with a freshly solved question. It
// does not touch the turns.
func (c *Context) RecordSolved(questionText, extractedText string, doc solution.Document) {
	c.LastQuestionText = questionText
	c.LastExtractedText = extractedText
	d := solution.Document{Segments: append([]solution.Segment(nil), doc.Segments...)}
	c.LastSolution = &d
	c.touch()
}

// AppendTurn adds a turn with the next sequence number and trims the history
// from the front to MaxTurns.
func (c *Context) AppendTurn(role Role, content string) Turn {
	t := Turn{Role: role, Content: content, Sequence: c.NextSeq}
	c.NextSeq++
	c.Turns = append(c.Turns, t)
	if over := len(c.Turns) - MaxTurns; over > 0 {
		c.Turns = append(c.Turns[:0:0], c.Turns[over:]...)
	}
	c.touch()
	return t
}

// Clear empties the turns. The solved-question snapshot goes too only when
// dropSnapshot is set.
func (c *Context) Clear(dropSnapshot bool) {
	c.Turns = []Turn{}
	if dropSnapshot {
		c.LastQuestionText = ""
		c.LastExtractedText = ""
		c.LastSolution = nil
	}
	c.touch()
}

func (c *Context) HasSnapshot() bool {
	return c.LastQuestionText != "" || c.LastExtractedText != "" || c.LastSolution != nil
}

// Clone returns a deep copy, so a stored Context is never aliased by a caller.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	out.Turns = append([]Turn{}, c.Turns...)
	if c.LastSolution != nil {
		d := solution.Document{Segments: append([]solution.Segment(nil), c.LastSolution.Segments...)}
		out.LastSolution = &d
	}
	return &out
}

func (c *Context) touch() { c.UpdatedAt = time.Now().UTC() }
