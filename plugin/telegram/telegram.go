// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// Sender delivers notifications to a Telegram chat.
type Sender struct {
	bot *tgbotapi.BotAPI
}

// NewSender creates a Telegram sender for the given bot token.
func NewSender(botToken string) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Telegram bot")
	}
	return &Sender{bot: bot}, nil
}

// Name returns the transport name for notifier registration.
func (s *Sender) Name() string {
	return "telegram"
}

// Send posts the plain body to the chat identified by address. Telegram has
// no HTML-email equivalent, so the HTML variant is ignored here.
func (s *Sender) Send(ctx context.Context, address, subject, plainBody, htmlBody string) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid telegram chat id %q", address)
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s\n\n%s", subject, plainBody))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := s.bot.Send(msg); err != nil {
		return errors.Wrapf(err, "failed to send telegram message to chat %d", chatID)
	}
	return nil
}
