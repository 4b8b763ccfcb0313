// Package notify delivers admin alerts for ledger events over Telegram.
package notify

import (
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not provided")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

// Send posts a plain-text message to the admin chat.
func (t *Telegram) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	_, err := t.api.Send(msg)
	return err
}
