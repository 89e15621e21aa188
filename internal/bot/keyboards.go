package bot

import (
	tele "gopkg.in/telebot.v3"

	"finbot/internal/agent"
)

// Button uniques for callback routing.
const (
	btnConfirmUnique = agent.CallbackConfirm
	btnEditUnique    = agent.CallbackEdit
	btnCancelUnique  = agent.CallbackCancel
	btnRenameUnique  = "renamecat"
)

// confirmationKeyboard builds the Confirm / Edit / Cancel row attached
// to every confirmation message.
func confirmationKeyboard() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("✅ Confirm", btnConfirmUnique),
		markup.Data("✏️ Edit", btnEditUnique),
		markup.Data("❌ Cancel", btnCancelUnique),
	))
	return markup
}

// categoriesKeyboard lists one rename button per category, two per row.
func categoriesKeyboard(names []string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	var row []tele.Btn
	for _, name := range names {
		row = append(row, markup.Data(name, btnRenameUnique, name))
		if len(row) == 2 {
			rows = append(rows, markup.Row(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, markup.Row(row...))
	}
	markup.Inline(rows...)
	return markup
}

// webAppKeyboard opens the expense form Mini App.
func webAppKeyboard(url string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.WebApp("➕ Add expense", &tele.WebApp{URL: url}),
	))
	return markup
}
