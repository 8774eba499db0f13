package handler

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Callback data of the authoring keyboards
const (
	cbTypeNormal    = "type_normal"
	cbTypePin       = "type_pin"
	cbCancel        = "cancel_all"
	cbTimeNow       = "time_now"
	cbTimeCustom    = "time_custom"
	cbBackToType    = "back_to_type"
	cbBackToContent = "back_to_content"
)

func (h *Handler) mainMenu(userID int64) *telego.ReplyKeyboardMarkup {
	var rows [][]telego.KeyboardButton
	if h.cfg.Broadcast.IsAdmin(userID) {
		rows = append(rows, tu.KeyboardRow(tu.KeyboardButton(h.t("menu_broadcast"))))
	}
	rows = append(rows, tu.KeyboardRow(tu.KeyboardButton(h.t("menu_staff_chat"))))
	return tu.Keyboard(rows...).WithResizeKeyboard()
}

func (h *Handler) chatExitKeyboard() *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton(h.t("chat_exit"))),
	).WithResizeKeyboard()
}

func (h *Handler) typeKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(h.t("type_normal_btn")).WithCallbackData(cbTypeNormal),
			tu.InlineKeyboardButton(h.t("type_pin_btn")).WithCallbackData(cbTypePin),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(h.t("back_btn")).WithCallbackData(cbBackToContent),
			tu.InlineKeyboardButton(h.t("cancel_btn")).WithCallbackData(cbCancel),
		),
	)
}

func (h *Handler) timeKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton(h.t("time_now_btn")).WithCallbackData(cbTimeNow)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton(h.t("time_custom_btn")).WithCallbackData(cbTimeCustom)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton(h.t("back_btn")).WithCallbackData(cbBackToType)),
	)
}
