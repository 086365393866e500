package bot

import (
	tele "gopkg.in/telebot.v4"

	"retell/internal/orchestrator"
)

// ActionsKeyboard renders orchestrator action descriptors as an inline
// keyboard, one button per row. Shared with the worker, which attaches it
// to delivered transcripts.
func ActionsKeyboard(actions []orchestrator.Action) *tele.ReplyMarkup {
	if len(actions) == 0 {
		return nil
	}

	rows := make([][]tele.InlineButton, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []tele.InlineButton{{
			Text: a.Label,
			Data: a.Token,
		}})
	}

	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

// subscribeKeyboard offers the channel link and a re-check button.
func subscribeKeyboard(channelURL string) *tele.ReplyMarkup {
	var rows [][]tele.InlineButton
	if channelURL != "" {
		rows = append(rows, []tele.InlineButton{{
			Text: "📎 Подписаться на канал",
			URL:  channelURL,
		}})
	}
	rows = append(rows, []tele.InlineButton{{
		Text: "🔄 Проверить подписку",
		Data: checkSubToken,
	}})

	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
