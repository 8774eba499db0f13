package handler

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-broadcast/internal/flow"
	"tg-broadcast/internal/logger"
)

func (h *Handler) enterStaffChat(ctx context.Context, message telego.Message) error {
	if _, err := h.machine.Fire(message.From.ID, flow.OpenStaffChat{}); err != nil {
		return err
	}
	return h.send(ctx, message.Chat.ID, h.t("chat_active"), h.chatExitKeyboard())
}

// staffChatMessage relays message to every other staff member, a header
// naming the sender followed by a copy
func (h *Handler) staffChatMessage(ctx context.Context, message telego.Message) error {
	sender := message.From
	if message.Text == h.t("chat_exit") {
		if _, err := h.machine.Fire(sender.ID, flow.Back{}); err != nil {
			return err
		}
		return h.send(ctx, message.Chat.ID, h.t("chat_left"), h.mainMenu(sender.ID))
	}

	prefix := "👮"
	if h.cfg.Broadcast.IsAdmin(sender.ID) {
		prefix = "👑"
	}
	header := fmt.Sprintf(h.t("chat_header"), prefix, displayName(sender))

	for _, uid := range h.cfg.Broadcast.StaffIDs() {
		if uid == sender.ID {
			continue
		}
		if err := h.send(ctx, uid, header, nil); err != nil {
			continue
		}
		_, err := h.bot.CopyMessage(ctx, &telego.CopyMessageParams{
			ChatID:     tu.ID(uid),
			FromChatID: tu.ID(message.Chat.ID),
			MessageID:  message.MessageID,
		})
		if err != nil {
			logger.Warningf("Failed to relay staff message to %d: %v", uid, err)
		}
	}
	return nil
}
