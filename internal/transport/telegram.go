package transport

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"
)

const defaultRequestTimeout = 15 * time.Second

// Telegram implements Transport on top of the Bot API
type Telegram struct {
	bot     *telego.Bot
	timeout time.Duration
}

// NewTelegram wraps bot, every request is cut off after timeout
func NewTelegram(bot *telego.Bot, timeout time.Duration) *Telegram {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Telegram{bot: bot, timeout: timeout}
}

func (t *Telegram) CopySend(ctx context.Context, fromChatID int64, messageID int, toChatID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	sent, err := t.bot.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:     tu.ID(toChatID),
		FromChatID: tu.ID(fromChatID),
		MessageID:  messageID,
	})
	if err != nil {
		return 0, NewError("copy message", toChatID, err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) Pin(ctx context.Context, chatID int64, messageID int) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := t.bot.PinChatMessage(ctx, &telego.PinChatMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	return NewError("pin message", chatID, err)
}

func (t *Telegram) EditText(ctx context.Context, chatID int64, messageID int, text string, entities []telego.MessageEntity) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// no ParseMode: entities are applied as given
	_, err := t.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Text:      text,
		Entities:  entities,
	})
	return NewError("edit text", chatID, err)
}

func (t *Telegram) EditCaption(ctx context.Context, chatID int64, messageID int, caption string, entities []telego.MessageEntity) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	_, err := t.bot.EditMessageCaption(ctx, &telego.EditMessageCaptionParams{
		ChatID:          tu.ID(chatID),
		MessageID:       messageID,
		Caption:         caption,
		CaptionEntities: entities,
	})
	return NewError("edit caption", chatID, err)
}

func (t *Telegram) Delete(ctx context.Context, chatID int64, messageID int) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := t.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	return NewError("delete message", chatID, err)
}

func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	_, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	return NewError("send message", chatID, err)
}

// Classify maps a Bot API or network error onto a failure class
func Classify(err error) error {
	var apiErr *ta.Error
	if errors.As(err, &apiErr) {
		return classifyAPI(apiErr.ErrorCode, apiErr.Description)
	}
	// timeouts, resets and cancelled requests
	return ErrTransient
}

func classifyAPI(code int, description string) error {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "message is not modified"):
		return ErrUnchanged
	case code == 429 || code >= 500 || strings.Contains(desc, "too many requests"):
		return ErrTransient
	case strings.Contains(desc, "not found"):
		return ErrNotFound
	default:
		// 403 (kicked, blocked) and the remaining 400s will not succeed on retry
		return ErrPermanent
	}
}
