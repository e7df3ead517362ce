package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbEnginePrefix = "engine:"
	cbClear        = "clear"
)

// engine picker buttons
func engineKeyboard(names []string) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(names))
	for _, n := range names {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(n, cbEnginePrefix+n))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// button under a solution
func solvedKeyboard() tgbotapi.InlineKeyboardMarkup {
	btn := tgbotapi.NewInlineKeyboardButtonData("🧹 Clear follow-ups", cbClear)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(btn))
}

func engineFromCallback(data string) (string, bool) {
	if !strings.HasPrefix(data, cbEnginePrefix) {
		return "", false
	}
	name := strings.TrimPrefix(data, cbEnginePrefix)
	return name, name != ""
}
