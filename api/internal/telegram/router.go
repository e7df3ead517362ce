package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jee-solver/api/internal/acquire"
	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/logger"
	"jee-solver/api/internal/solver"
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot        Bot
	Solver     *solver.Service
	EngManager *gateway.Manager
	Acq        *acquire.Acquirer
	Log        *logger.Logger

	// Timeout bounds one solve or follow-up call.
	Timeout time.Duration

	debounce time.Duration
	batches  sync.Map // key -> *photoBatch
}

func NewRouter(bot Bot, svc *solver.Service, mgr *gateway.Manager, acq *acquire.Acquirer, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		Bot:        bot,
		Solver:     svc,
		EngManager: mgr,
		Acq:        acq,
		Log:        log,
		Timeout:    180 * time.Second,
		debounce:   debounce,
	}
}

const helpText = "Send a photo of a JEE problem (or several photos as an album) and I will solve it step by step.\n" +
	"After that, just write a message to ask follow-up questions about the solution.\n\n" +
	"Commands:\n" +
	"/solve <text> - solve a typed question\n" +
	"/clear - forget the follow-up history\n" +
	"/history - show the last messages\n" +
	"/engine [name] [model] - show or switch the model engine\n" +
	"/health - check the bot"

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// inline buttons
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil {
		return
	}
	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(msg)
	case msg.Document != nil:
		r.acceptDocument(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		r.handleText(ctx, msg.Chat.ID, msg.Text)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := msg.CommandArguments()
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, args)
	case "solve":
		if strings.TrimSpace(args) == "" {
			r.send(cid, "Usage: /solve <question text>")
			return
		}
		r.solve(ctx, cid, solver.SolveInput{QuestionText: args})
	case "clear":
		r.clear(ctx, cid)
	case "history":
		r.history(ctx, cid)
	default:
		r.send(cid, "Unknown command. Try /help")
	}
}

// parseEngineArgs splits "/engine name [model]".
func parseEngineArgs(args string) (name, model string) {
	f := strings.Fields(args)
	if len(f) > 0 {
		name = strings.ToLower(f[0])
	}
	if len(f) > 1 {
		model = f[1]
	}
	return name, model
}

func (r *Router) handleEngineCommand(chatID int64, args string) {
	name, model := parseEngineArgs(args)
	if name == "" {
		cur := r.EngManager.Get(chatID)
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Current engine: %s (%s)\nUsage: /engine {%s} [model]",
			cur.Name(), cur.GetModel(), strings.Join(r.EngManager.Engines().Names(), "|")))
		msg.ReplyMarkup = engineKeyboard(r.EngManager.Engines().Names())
		r.sendMessage(msg)
		return
	}
	r.switchEngine(chatID, name, model)
}

func (r *Router) switchEngine(chatID int64, name, model string) {
	g, err := r.EngManager.Switch(chatID, name, model)
	switch {
	case errors.Is(err, gateway.ErrUnknownEngine):
		r.send(chatID, "❌ Unknown engine. Available: "+strings.Join(r.EngManager.Engines().Names(), " | "))
	case err != nil:
		r.send(chatID, "❌ "+err.Error())
	default:
		r.send(chatID, "✅ Engine: "+g.Name()+" ("+g.GetModel()+").")
	}
}

func (r *Router) send(chatID int64, text string) {
	r.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn("telegram send failed", "chat_id", msg.ChatID, "err", err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.Log.Error("telegram request failed", "chat_id", chatID, "err", err)
	r.send(chatID, fmt.Sprintf("⚠️ Error: %v", err))
}

func (r *Router) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}
