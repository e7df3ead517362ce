package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"jee-solver/api/internal/conversation"
	"jee-solver/api/internal/solver"
	"jee-solver/api/internal/util"
)

// handleText treats text as a new question until something has been solved,
// then as a follow-up on that solution.
func (r *Router) handleText(ctx context.Context, chatID int64, text string) {
	c, err := r.Solver.History(ctx, conversationKey(chatID))
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	if !c.HasSnapshot() {
		r.solve(ctx, chatID, solver.SolveInput{QuestionText: text})
		return
	}

	g := r.EngManager.Get(chatID)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.Solver.Chat(ctx, solver.ChatInput{
		ConversationID: conversationKey(chatID),
		Message:        text,
		Engine:         g.Name(),
		Model:          g.GetModel(),
	})
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	if res.GatewayErr != nil {
		r.Log.Warn("chat gateway error", "chat_id", chatID, "err", res.GatewayErr)
	}
	for _, part := range chunkText(res.Response, messageLimit) {
		r.send(chatID, part)
	}
}

func (r *Router) clear(ctx context.Context, chatID int64) {
	if err := r.Solver.ClearChat(ctx, conversationKey(chatID)); err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, "🧹 Follow-up history cleared.")
}

func (r *Router) history(ctx context.Context, chatID int64) {
	c, err := r.Solver.History(ctx, conversationKey(chatID))
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, formatHistory(c, historyShown))
}

func formatHistory(c *conversation.Context, last int) string {
	if len(c.Turns) == 0 {
		if c.HasSnapshot() {
			return "No follow-up questions yet. Write a message to ask about the solution."
		}
		return "Nothing here yet. Send a photo of a problem to start."
	}
	turns := c.Turns
	if len(turns) > last {
		turns = turns[len(turns)-last:]
	}
	var b strings.Builder
	for _, t := range turns {
		who := "You"
		if t.Role == conversation.RoleAssistant {
			who = "Bot"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", who, util.Truncate(strings.TrimSpace(t.Content), 300))
	}
	return strings.TrimSpace(b.String())
}

// chunkText splits a reply into messages of at most limit bytes.
func chunkText(s string, limit int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{"(empty reply)"}
	}
	var out []string
	for len(s) > limit {
		cut := strings.LastIndexByte(s[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
