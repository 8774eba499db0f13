// Package transport defines the delivery capability the distribution core
// consumes and its telego-backed implementation.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
)

// Transport delivers, pins, edits and deletes messages on destination chats.
// Every call is bounded by the implementation's own timeout.
type Transport interface {
	CopySend(ctx context.Context, fromChatID int64, messageID int, toChatID int64) (int, error)
	Pin(ctx context.Context, chatID int64, messageID int) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, entities []telego.MessageEntity) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string, entities []telego.MessageEntity) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	SendText(ctx context.Context, chatID int64, text string) error
}

// Failure classes. Transport errors wrap exactly one of these.
var (
	ErrTransient = errors.New("transient delivery failure")
	ErrNotFound  = errors.New("chat or message not found")
	ErrUnchanged = errors.New("message is not modified")
	ErrPermanent = errors.New("permanent delivery failure")
)

// Error is a classified failure of one call against one chat.
type Error struct {
	Op     string
	ChatID int64
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s in chat %d: %v: %v", e.Op, e.ChatID, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewError classifies err and wraps it, nil stays nil.
func NewError(op string, chatID int64, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Op: op, ChatID: chatID, Kind: Classify(err), Err: err}
}

// KindOf returns the failure class carried by err, ErrPermanent when err is
// unclassified.
func KindOf(err error) error {
	for _, kind := range []error{ErrUnchanged, ErrNotFound, ErrTransient, ErrPermanent} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrPermanent
}

// IsUnchanged reports whether err means the edit was a no-op
func IsUnchanged(err error) bool {
	return errors.Is(err, ErrUnchanged)
}
