package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	if name, ok := engineFromCallback(cb.Data); ok {
		r.dropKeyboard(cid, cb.Message.MessageID)
		r.switchEngine(cid, name, "")
		return
	}
	switch cb.Data {
	case cbClear:
		r.dropKeyboard(cid, cb.Message.MessageID)
		r.clear(ctx, cid)
	}
}

// drop the keyboard
func (r *Router) dropKeyboard(chatID int64, msgID int) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	_, _ = r.Bot.Request(edit)
}
