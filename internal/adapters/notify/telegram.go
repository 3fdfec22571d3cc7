package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/PabloGalante/twogether/internal/domain"
)

// Sender is the part of tgbotapi.BotAPI the sink uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications as chat messages. The destination is the
// numeric chat id.
type Telegram struct {
	sender Sender
}

// NewTelegram authorizes the bot token against the Telegram API.
func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return NewTelegramWithSender(api), nil
}

func NewTelegramWithSender(sender Sender) *Telegram {
	return &Telegram{sender: sender}
}

func (t *Telegram) Notify(ctx context.Context, destination string, msg domain.Notification) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(destination), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: telegram destination %q is not a chat id", domain.ErrInvalidInput, destination)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("%w: telegram send: %w", domain.ErrUpstream, err)
	}
	return nil
}
