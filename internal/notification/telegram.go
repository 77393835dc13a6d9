package notification

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramBot is the slice of the bot API the sender needs; narrowed so
// tests can substitute a fake.
type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts notifications to a single chat.
type TelegramSender struct {
	bot telegramBot
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

func (t *TelegramSender) Send(chatID int64, title, body string) error {
	if chatID == 0 {
		return fmt.Errorf("telegram chat id is not configured")
	}
	text := title
	if body != "" {
		text = fmt.Sprintf("<b>%s</b>\n%s", title, body)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		// Retry without HTML in case the body trips the parser.
		msg.ParseMode = ""
		msg.Text = title + "\n" + body
		if _, err2 := t.bot.Send(msg); err2 != nil {
			return fmt.Errorf("send telegram message: %w", err2)
		}
		slog.Debug("telegram: sent without HTML parse mode", "error", err)
	}
	return nil
}
