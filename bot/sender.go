package bot

import (
	"context"

	"hostel-market/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Send delivers one transport-neutral message. It makes the bot usable as the
// notifier's sender.
func (b *Bot) Send(_ context.Context, chatID int64, m models.Message) error {
	_, err := b.api.Send(Chattable(chatID, m))
	return err
}

// Chattable maps a message to the matching Telegram request: a document, a
// photo with caption, or plain text.
func Chattable(chatID int64, m models.Message) tgbotapi.Chattable {
	parseMode := ""
	if m.Markdown {
		parseMode = tgbotapi.ModeMarkdown
	}
	kb := inlineKeyboard(m.Buttons)

	switch {
	case m.Document != nil:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(m.Document.Path))
		doc.Caption = m.Document.Caption
		if m.Text != "" {
			doc.Caption = m.Text
		}
		if kb != nil {
			doc.ReplyMarkup = *kb
		}
		return doc
	case m.PhotoID != "":
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(m.PhotoID))
		photo.Caption = m.Text
		photo.ParseMode = parseMode
		if kb != nil {
			photo.ReplyMarkup = *kb
		}
		return photo
	default:
		msg := tgbotapi.NewMessage(chatID, m.Text)
		msg.ParseMode = parseMode
		if kb != nil {
			msg.ReplyMarkup = *kb
		}
		return msg
	}
}

// inlineKeyboard converts button rows to an inline keyboard (URL vs callback).
func inlineKeyboard(rows [][]models.Button) *tgbotapi.InlineKeyboardMarkup {
	var out [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
			}
		}
		if len(btns) > 0 {
			out = append(out, btns)
		}
	}
	if len(out) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}
