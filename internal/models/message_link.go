package models

import "time"

// MessageLink associates one source message with one delivered copy.
type MessageLink struct {
	ID              uint  `gorm:"primaryKey;autoIncrement"`
	SourceChatID    int64 `gorm:"not null;index:idx_link_source,priority:1"`
	SourceMessageID int   `gorm:"not null;index:idx_link_source,priority:2"`
	TargetChatID    int64 `gorm:"not null"`
	TargetMessageID int   `gorm:"not null"`
	CreatedAt       time.Time
}

func (MessageLink) TableName() string { return "message_links" }

// SourceRef identifies an authored message. Telegram message ids are only
// unique within a chat, so both parts are needed.
type SourceRef struct {
	ChatID    int64
	MessageID int
}

// Copy is one delivered copy of a source message.
type Copy struct {
	ChatID    int64
	MessageID int
}
