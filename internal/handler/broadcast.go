package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-broadcast/internal/flow"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
)

func (h *Handler) beginBroadcast(ctx context.Context, message telego.Message) error {
	if _, err := h.machine.Fire(message.From.ID, flow.Begin{}); err != nil {
		return err
	}
	return h.send(ctx, message.Chat.ID, h.t("ask_content"), nil)
}

// receiveContent stores the post, shows a preview and asks for the type
func (h *Handler) receiveContent(ctx context.Context, message telego.Message) error {
	src := models.SourceRef{ChatID: message.Chat.ID, MessageID: message.MessageID}
	if _, err := h.machine.Fire(message.From.ID, flow.Content{Source: src}); err != nil {
		return err
	}

	_ = h.send(ctx, message.Chat.ID, h.t("preview_title"), nil)
	_, err := h.bot.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:     tu.ID(message.Chat.ID),
		FromChatID: tu.ID(message.Chat.ID),
		MessageID:  message.MessageID,
	})
	if err != nil {
		logger.Warningf("Preview of %d failed: %v", message.MessageID, err)
		_ = h.send(ctx, message.Chat.ID, h.t("preview_failed"), nil)
	}

	return h.send(ctx, message.Chat.ID, h.t("choose_type"), h.typeKeyboard())
}

// receiveDate schedules the post at the typed date
func (h *Handler) receiveDate(ctx context.Context, message telego.Message) error {
	act, err := h.machine.Fire(message.From.ID, flow.DateText{Text: message.Text})
	switch {
	case errors.Is(err, flow.ErrDateInPast):
		return h.send(ctx, message.Chat.ID, h.t("date_in_past"), nil)
	case errors.Is(err, flow.ErrBadDateFormat):
		return h.send(ctx, message.Chat.ID, h.t("date_bad_format"), nil)
	case err != nil:
		return err
	}

	sched, ok := act.(flow.Schedule)
	if !ok {
		return nil
	}
	return h.schedule(ctx, message.From, message.Chat.ID, sched)
}

func (h *Handler) schedule(ctx context.Context, user *telego.User, chatID int64, sched flow.Schedule) error {
	id, err := h.tasks.Add(ctx, sched.Source.ChatID, sched.Source.MessageID, sched.RunAt, sched.Pin)
	if err != nil {
		logger.Errorf("Failed to schedule post %d: %v", sched.Source.MessageID, err)
		return h.send(ctx, chatID, h.t("storage_error"), h.mainMenu(user.ID))
	}

	when := sched.RunAt.In(h.machine.Location()).Format(h.machine.Layout())
	logger.Infof("Scheduled task %s for %s", id, when)
	h.audit(ctx, user, fmt.Sprintf("Scheduled post %d for %s (pin=%v)", sched.Source.MessageID, when, sched.Pin))
	return h.send(ctx, chatID, fmt.Sprintf(h.t("scheduled"), when), h.mainMenu(user.ID))
}

func (h *Handler) distributeNow(ctx context.Context, user *telego.User, chatID int64, act flow.DistributeNow) error {
	report := h.dispatcher.Distribute(ctx, act.Source, act.Pin)
	h.audit(ctx, user, fmt.Sprintf("Broadcast post %d to %d groups (pin=%v)",
		act.Source.MessageID, report.Delivered(), act.Pin))
	text := fmt.Sprintf(h.t("distribution_done"), report.Delivered(), len(report.Results))
	if n := report.PinFailures(); n > 0 {
		text += "\n" + fmt.Sprintf(h.t("pin_failed"), n)
	}
	return h.send(ctx, chatID, text, h.mainMenu(user.ID))
}

// HandleCallbackQuery advances the authoring flow from an inline button
func (h *Handler) HandleCallbackQuery(ctx context.Context, query telego.CallbackQuery) error {
	if query.Data == "" || !h.cfg.Broadcast.IsAdmin(query.From.ID) {
		return nil
	}
	logger.Infof("Received callback query: %s", query.Data)

	if err := h.bot.AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID)); err != nil {
		logger.Warningf("Error answering callback query: %v", err)
	}

	msg, ok := query.Message.(*telego.Message)
	if !ok || msg == nil {
		return nil
	}
	chatID, messageID := msg.Chat.ID, msg.MessageID
	user := &query.From

	var ev flow.Event
	switch query.Data {
	case cbTypeNormal:
		ev = flow.PickType{Pin: false}
	case cbTypePin:
		ev = flow.PickType{Pin: true}
	case cbCancel:
		ev = flow.Cancel{}
	case cbTimeNow:
		ev = flow.SendNow{}
	case cbTimeCustom:
		ev = flow.PickCustomTime{}
	case cbBackToType, cbBackToContent:
		ev = flow.Back{}
	default:
		logger.Warningf("Unknown callback data: %s", query.Data)
		return nil
	}

	act, err := h.machine.Fire(user.ID, ev)
	if errors.Is(err, flow.ErrUnexpectedEvent) {
		// button of a finished or expired session
		logger.Debugf("Stale callback %s from %d: %v", query.Data, user.ID, err)
		return nil
	}
	if err != nil {
		return err
	}

	switch a := act.(type) {
	case flow.Cancelled:
		return h.editOrSend(ctx, chatID, messageID, h.t("cancelled"), nil)
	case flow.DistributeNow:
		_ = h.editOrSend(ctx, chatID, messageID, h.t("distribution_started"), nil)
		return h.distributeNow(ctx, user, chatID, a)
	}

	switch h.machine.State(user.ID) {
	case flow.AwaitingContent:
		return h.editOrSend(ctx, chatID, messageID, h.t("ask_content"), nil)
	case flow.ChoosingTime:
		s, _ := h.machine.Session(user.ID)
		mode := h.t("mode_normal")
		if s.Pin {
			mode = h.t("mode_pin")
		}
		return h.editOrSend(ctx, chatID, messageID, fmt.Sprintf(h.t("choose_time"), mode), h.timeKeyboard())
	case flow.ChoosingType:
		return h.editOrSend(ctx, chatID, messageID, h.t("choose_type_again"), h.typeKeyboard())
	case flow.AwaitingDate:
		return h.editOrSend(ctx, chatID, messageID,
			fmt.Sprintf(h.t("ask_date"), h.machine.Location(), h.machine.Example()), nil)
	}
	return nil
}
