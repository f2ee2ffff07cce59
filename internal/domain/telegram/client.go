package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for sending messages via a Telegram bot.
// This helps in decoupling the application logic from the specific bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}

// DeliveryError wraps a failed send with a retryability classification.
// Rate limiting and transient transport failures are retryable; rejected
// payloads and auth failures are not.
type DeliveryError struct {
	Err       error
	Retryable bool
}

func (e *DeliveryError) Error() string { return e.Err.Error() }

func (e *DeliveryError) Unwrap() error { return e.Err }
