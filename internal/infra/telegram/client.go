package telegram

import (
	"errors"
	"net"

	"gopkg.in/telebot.v3"

	domainTelegram "paytrack/internal/domain/telegram"
)

// TelebotAdapter implements the domain Client interface using the
// gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to the specified chat, classifying
// failures so callers can decide whether a retry is worthwhile.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	_, err := tba.bot.Send(telebot.ChatID(recipientChatID), text, options)
	if err == nil {
		return nil
	}
	return &domainTelegram.DeliveryError{Err: err, Retryable: isRetryable(err)}
}

// isRetryable treats rate limiting, Telegram-side failures and transport
// errors as transient. Rejected payloads and auth errors are permanent.
func isRetryable(err error) bool {
	var floodErr *telebot.FloodError
	if errors.As(err, &floodErr) {
		return true
	}

	var apiErr *telebot.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
