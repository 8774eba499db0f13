package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-broadcast/internal/flow"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
	"tg-broadcast/internal/service"
)

// handleCommand runs a slash command and reports whether message was one
func (h *Handler) handleCommand(ctx context.Context, message telego.Message) (bool, error) {
	cmd, _, _ := tu.ParseCommand(message.Text)
	switch cmd {
	case "start":
		return true, h.handleStartCommand(ctx, message)
	case "del":
		return true, h.handleDeleteCommand(ctx, message)
	case "logs":
		return true, h.handleLogsCommand(ctx, message)
	case "queue":
		return true, h.handleQueueCommand(ctx, message)
	case "cancel":
		return true, h.handleCancelCommand(ctx, message)
	default:
		return false, nil
	}
}

func (h *Handler) handleStartCommand(ctx context.Context, message telego.Message) error {
	h.audit(ctx, message.From, "Start")
	h.machine.Reset(message.From.ID)
	return h.send(ctx, message.Chat.ID, h.t("start_greeting"), h.mainMenu(message.From.ID))
}

// handleDeleteCommand removes every copy of the replied-to source message
func (h *Handler) handleDeleteCommand(ctx context.Context, message telego.Message) error {
	if !h.cfg.Broadcast.IsAdmin(message.From.ID) {
		return nil
	}
	if message.ReplyToMessage == nil {
		return h.reply(ctx, message, h.t("del_usage"))
	}

	src := models.SourceRef{ChatID: message.Chat.ID, MessageID: message.ReplyToMessage.MessageID}
	deleted, err := h.propagator.PropagateDelete(ctx, src)
	switch {
	case errors.Is(err, service.ErrNotDistributed):
		return h.reply(ctx, message, h.t("del_not_found"))
	case err != nil:
		logger.Errorf("Failed to delete copies of %d: %v", src.MessageID, err)
		return h.reply(ctx, message, h.t("storage_error"))
	}

	h.audit(ctx, message.From, fmt.Sprintf("Deleted post %d from %d groups", src.MessageID, deleted))
	return h.reply(ctx, message, fmt.Sprintf(h.t("del_done"), deleted))
}

// handleLogsCommand sends the audit trail as a text file
func (h *Handler) handleLogsCommand(ctx context.Context, message telego.Message) error {
	text, err := h.auditor.Export(ctx, h.cfg.Audit.ExportLimit)
	if err != nil {
		logger.Errorf("Failed to export audit log: %v", err)
		return h.send(ctx, message.Chat.ID, h.t("storage_error"), nil)
	}

	_, err = h.bot.SendDocument(ctx, tu.Document(
		tu.ID(message.Chat.ID),
		tu.File(tu.NameReader(strings.NewReader(text), "logs.txt")),
	).WithCaption(h.t("logs_caption")))
	return err
}

// handleQueueCommand lists the pending scheduled posts
func (h *Handler) handleQueueCommand(ctx context.Context, message telego.Message) error {
	tasks, err := h.tasks.Pending(ctx)
	if err != nil {
		logger.Errorf("Failed to list pending tasks: %v", err)
		return h.send(ctx, message.Chat.ID, h.t("storage_error"), nil)
	}
	if len(tasks) == 0 {
		return h.send(ctx, message.Chat.ID, h.t("queue_empty"), nil)
	}

	loc := h.machine.Location()
	lines := []string{h.t("queue_title")}
	for i, task := range tasks {
		mode := h.t("mode_normal")
		if task.PinOnDelivery {
			mode = h.t("mode_pin")
		}
		lines = append(lines, fmt.Sprintf(h.t("queue_item"), i+1,
			task.RunTime(loc).Format(h.machine.Layout()), mode))
	}
	return h.send(ctx, message.Chat.ID, strings.Join(lines, "\n"), nil)
}

func (h *Handler) handleCancelCommand(ctx context.Context, message telego.Message) error {
	act, err := h.machine.Fire(message.From.ID, flow.Cancel{})
	if err != nil {
		return err
	}
	if _, ok := act.(flow.Cancelled); !ok {
		return h.send(ctx, message.Chat.ID, h.t("nothing_to_cancel"), h.mainMenu(message.From.ID))
	}
	return h.send(ctx, message.Chat.ID, h.t("cancelled"), h.mainMenu(message.From.ID))
}
