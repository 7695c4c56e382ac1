package models

import "github.com/bwmarrin/snowflake"

// TelegramLink binds a marketplace user to the chat that receives their notifications.
type TelegramLink struct {
	Record
	UserID snowflake.ID `gorm:"uniqueIndex"`
	ChatID int64
	Code   string `gorm:"uniqueIndex"`
}
