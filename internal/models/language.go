package models

// Language constants
const (
	LangEnglish = "en"
	LangRussian = "ru"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangRussian: {
		// Command descriptions for Telegram command menu
		"cmd_desc_start":  "Главное меню",
		"cmd_desc_del":    "Удалить рассылку (ответом на пост)",
		"cmd_desc_logs":   "Журнал действий",
		"cmd_desc_queue":  "Запланированные посты",
		"cmd_desc_cancel": "Отменить текущее действие",

		"start_greeting":  "👋 Привет!",
		"menu_broadcast":  "📢 Создать рассылку",
		"menu_staff_chat": "Чат",
		"storage_error":   "⚠️ Ошибка базы данных, попробуйте позже.",

		"chat_active": "💬 Чат активен",
		"chat_exit":   "⬅️ Выйти из чата",
		"chat_left":   "Выход",
		"chat_header": "💬 %s <b>%s:</b>",

		"ask_content":       "📤 <b>Отправьте пост</b> (текст, фото или видео):",
		"preview_title":     "👀 <b>Превью сообщения:</b>",
		"preview_failed":    "Ошибка предпросмотра.",
		"choose_type":       "🛠 <b>Что делаем?</b>",
		"choose_type_again": "Выберите тип:",
		"type_normal_btn":   "🚀 Отправить",
		"type_pin_btn":      "📌 Отправить и Закрепить",
		"cancel_btn":        "❌ Отмена",
		"mode_normal":       "Обычная 🚀",
		"mode_pin":          "С закрепом 📌",
		"choose_time":       "Режим: <b>%s</b>\nКогда отправить?",
		"time_now_btn":      "⚡ Отправить СЕЙЧАС",
		"time_custom_btn":   "📅 Выбрать дату и время",
		"back_btn":          "⬅️ Назад",

		"distribution_started": "⏳ <b>Рассылка запущена...</b>",
		"distribution_done":    "✅ <b>Готово!</b> Доставлено в %d из %d групп.",
		"pin_failed":           "⚠️ Не удалось закрепить в %d группах.",
		"ask_date":             "✍️ Введите дату (%s):\n<code>%s</code>",
		"date_in_past":         "⚠️ Эта дата уже прошла!",
		"date_bad_format":      "⚠️ Формат: <code>ДД.ММ.ГГГГ ЧЧ:ММ</code>",
		"scheduled":            "✅ <b>Запланировано:</b> <code>%s</code>",
		"scheduled_notice":     "✅ Запланированный пост отправлен в %d групп.",
		"cancelled":            "❌ Отменено.",
		"nothing_to_cancel":    "Нечего отменять.",
		"edit_done":            "✅ Обновлено в %d группах!",

		"del_usage":     "Ответьте командой /del на исходный пост.",
		"del_not_found": "Сообщение не найдено в базе.",
		"del_done":      "🗑 Удалено из %d групп.",

		"logs_caption": "Logs",

		"queue_empty": "Нет запланированных постов.",
		"queue_title": "📅 <b>Запланированные посты:</b>",
		"queue_item":  "%d. <code>%s</code> %s",
	},
	LangEnglish: {
		"cmd_desc_start":  "Main menu",
		"cmd_desc_del":    "Delete a broadcast (reply to the post)",
		"cmd_desc_logs":   "Action log",
		"cmd_desc_queue":  "Scheduled posts",
		"cmd_desc_cancel": "Cancel the current action",

		"start_greeting":  "👋 Hello!",
		"menu_broadcast":  "📢 Create broadcast",
		"menu_staff_chat": "Chat",
		"storage_error":   "⚠️ Database error, please try again later.",

		"chat_active": "💬 Chat is active",
		"chat_exit":   "⬅️ Leave chat",
		"chat_left":   "Left the chat",
		"chat_header": "💬 %s <b>%s:</b>",

		"ask_content":       "📤 <b>Send the post</b> (text, photo or video):",
		"preview_title":     "👀 <b>Preview:</b>",
		"preview_failed":    "Preview failed.",
		"choose_type":       "🛠 <b>What should we do?</b>",
		"choose_type_again": "Choose the type:",
		"type_normal_btn":   "🚀 Send",
		"type_pin_btn":      "📌 Send and pin",
		"cancel_btn":        "❌ Cancel",
		"mode_normal":       "Normal 🚀",
		"mode_pin":          "Pinned 📌",
		"choose_time":       "Mode: <b>%s</b>\nWhen should it go out?",
		"time_now_btn":      "⚡ Send NOW",
		"time_custom_btn":   "📅 Pick date and time",
		"back_btn":          "⬅️ Back",

		"distribution_started": "⏳ <b>Distribution started...</b>",
		"distribution_done":    "✅ <b>Done!</b> Delivered to %d of %d groups.",
		"pin_failed":           "⚠️ Could not pin in %d groups.",
		"ask_date":             "✍️ Enter the date (%s):\n<code>%s</code>",
		"date_in_past":         "⚠️ This date has already passed!",
		"date_bad_format":      "⚠️ Format: <code>DD.MM.YYYY HH:MM</code>",
		"scheduled":            "✅ <b>Scheduled:</b> <code>%s</code>",
		"scheduled_notice":     "✅ Scheduled post delivered to %d groups.",
		"cancelled":            "❌ Cancelled.",
		"nothing_to_cancel":    "Nothing to cancel.",
		"edit_done":            "✅ Updated in %d groups!",

		"del_usage":     "Reply to the original post with /del.",
		"del_not_found": "Message not found in base.",
		"del_done":      "🗑 Deleted from %d groups.",

		"logs_caption": "Logs",

		"queue_empty": "No scheduled posts.",
		"queue_title": "📅 <b>Scheduled posts:</b>",
		"queue_item":  "%d. <code>%s</code> %s",
	},
}

// GetTranslation returns the correct translation for a given language code and key
func GetTranslation(lang, key string) string {
	// Default to English if language not supported
	if _, ok := Translations[lang]; !ok {
		lang = LangEnglish
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	// Fall back to English if key not found in specified language
	if translation, ok := Translations[LangEnglish][key]; ok {
		return translation
	}

	// Return the key itself if translation not found
	return key
}

// GetLanguageName returns the display name of a language code
func GetLanguageName(langCode string) string {
	switch langCode {
	case LangRussian:
		return "Русский"
	case LangEnglish:
		return "English"
	default:
		return langCode
	}
}
