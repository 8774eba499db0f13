package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-broadcast/internal/config"
	"tg-broadcast/internal/flow"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
	"tg-broadcast/internal/service"
	"tg-broadcast/internal/transport"
)

// Bot is the part of the Bot API the handlers talk to
type Bot interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	CopyMessage(ctx context.Context, params *telego.CopyMessageParams) (*telego.MessageID, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
}

// TaskQueue stores scheduled broadcasts
type TaskQueue interface {
	Add(ctx context.Context, sourceChatID int64, sourceMessageID int, runAt time.Time, pinOnDelivery bool) (string, error)
	Pending(ctx context.Context) ([]models.ScheduledTask, error)
}

// Deps are the services the handlers drive
type Deps struct {
	Machine    *flow.Machine
	Dispatcher *service.Dispatcher
	Propagator *service.Propagator
	Auditor    *service.Auditor
	Tasks      TaskQueue
}

// Handler turns staff updates into broadcast operations
type Handler struct {
	bot  Bot
	cfg  *config.Config
	lang string

	machine    *flow.Machine
	dispatcher *service.Dispatcher
	propagator *service.Propagator
	auditor    *service.Auditor
	tasks      TaskQueue
}

func New(bot Bot, cfg *config.Config, deps Deps) *Handler {
	return &Handler{
		bot:        bot,
		cfg:        cfg,
		lang:       cfg.Bot.Language,
		machine:    deps.Machine,
		dispatcher: deps.Dispatcher,
		propagator: deps.Propagator,
		auditor:    deps.Auditor,
		tasks:      deps.Tasks,
	}
}

// SetupMessageHandlers configures all bot message and update handlers
func (h *Handler) SetupMessageHandlers(bh *th.BotHandler) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		return h.HandleMessage(ctx.Context(), message)
	})

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		return h.HandleEditedMessage(ctx.Context(), *update.EditedMessage)
	}, th.AnyEditedMessage())

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		return h.HandleCallbackQuery(ctx.Context(), query)
	})
}

// HandleMessage routes a private message from a staff member
func (h *Handler) HandleMessage(ctx context.Context, message telego.Message) error {
	if message.From == nil || message.From.IsBot || message.Chat.Type != telego.ChatTypePrivate {
		return nil
	}
	userID := message.From.ID
	if !h.cfg.Broadcast.IsStaff(userID) {
		logger.Debugf("Ignoring message from unknown user %d", userID)
		return nil
	}

	if ok, err := h.handleCommand(ctx, message); ok {
		return err
	}

	switch message.Text {
	case h.t("menu_broadcast"):
		if h.cfg.Broadcast.IsAdmin(userID) {
			return h.beginBroadcast(ctx, message)
		}
		return nil
	case h.t("menu_staff_chat"):
		return h.enterStaffChat(ctx, message)
	}

	switch h.machine.State(userID) {
	case flow.AwaitingContent:
		return h.receiveContent(ctx, message)
	case flow.AwaitingDate:
		return h.receiveDate(ctx, message)
	case flow.StaffChat:
		return h.staffChatMessage(ctx, message)
	}
	return nil
}

// HandleEditedMessage re-applies an admin's edit to every delivered copy
func (h *Handler) HandleEditedMessage(ctx context.Context, message telego.Message) error {
	if message.From == nil || message.Chat.Type != telego.ChatTypePrivate {
		return nil
	}
	if !h.cfg.Broadcast.IsAdmin(message.From.ID) {
		return nil
	}

	src := models.SourceRef{ChatID: message.Chat.ID, MessageID: message.MessageID}
	logger.Infof("[EDIT] %s edits message %d", message.From.FirstName, message.MessageID)

	updated, err := h.propagator.PropagateEdit(ctx, src, service.EditFromMessage(&message))
	if err != nil {
		logger.Errorf("Failed to propagate edit of %d: %v", message.MessageID, err)
		return h.send(ctx, message.Chat.ID, h.t("storage_error"), nil)
	}
	if updated == 0 {
		return nil
	}

	_, err = h.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:              tu.ID(message.Chat.ID),
		Text:                fmt.Sprintf(h.t("edit_done"), updated),
		DisableNotification: true,
		ReplyParameters:     &telego.ReplyParameters{MessageID: message.MessageID},
	})
	return err
}

func (h *Handler) t(key string) string {
	return models.GetTranslation(h.lang, key)
}

func (h *Handler) actor(user *telego.User) models.Actor {
	name := user.Username
	if name == "" {
		name = user.FirstName
	}
	role := models.RoleNone
	switch {
	case h.cfg.Broadcast.IsAdmin(user.ID):
		role = models.RoleAdmin
	case h.cfg.Broadcast.IsStaff(user.ID):
		role = models.RoleMod
	}
	return models.Actor{ID: user.ID, Name: name, Role: role}
}

// audit records action; a failure is already logged by the auditor
func (h *Handler) audit(ctx context.Context, user *telego.User, action string) {
	_ = h.auditor.Record(ctx, h.actor(user), action)
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) error {
	_, err := h.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:      tu.ID(chatID),
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	if err != nil {
		logger.Warningf("Failed to send message to %d: %v", chatID, err)
	}
	return err
}

func (h *Handler) reply(ctx context.Context, message telego.Message, text string) error {
	_, err := h.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          tu.ID(message.Chat.ID),
		Text:            text,
		ParseMode:       "HTML",
		ReplyParameters: &telego.ReplyParameters{MessageID: message.MessageID},
	})
	return err
}

// editOrSend rewrites a bot message in place and falls back to a new message
// when the original can no longer be edited
func (h *Handler) editOrSend(ctx context.Context, chatID int64, messageID int, text string, markup *telego.InlineKeyboardMarkup) error {
	_, err := h.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      tu.ID(chatID),
		MessageID:   messageID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	if err == nil {
		return nil
	}
	err = transport.NewError("edit text", chatID, err)
	if transport.IsUnchanged(err) {
		return nil
	}
	if errors.Is(err, transport.ErrPermanent) || errors.Is(err, transport.ErrNotFound) {
		logger.Debugf("Cannot edit message %d in %d, sending a new one: %v", messageID, chatID, err)
		var rm telego.ReplyMarkup
		if markup != nil {
			rm = markup
		}
		return h.send(ctx, chatID, text, rm)
	}
	return err
}

func displayName(user *telego.User) string {
	return html.EscapeString(user.FirstName)
}
