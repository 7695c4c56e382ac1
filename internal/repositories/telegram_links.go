package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"time"
)

type TelegramLinks struct {
	db *gorm.DB
}

func NewTelegramLinksRepository(db *gorm.DB) *TelegramLinks {
	return &TelegramLinks{db: db}
}

// Issue stores a fresh link code for the user, replacing an older unused one.
func (repo *TelegramLinks) Issue(ctx context.Context, link models.TelegramLink) error {
	return translate(repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "updated_at"}),
	}).Create(&link).Error, "telegram link")
}

// Bind attaches a chat to the link identified by code.
func (repo *TelegramLinks) Bind(ctx context.Context, code string, chatID int64) (bool, error) {
	result := repo.db.WithContext(ctx).Model(&models.TelegramLink{}).Where("code = ?", code).
		Updates(map[string]any{"chat_id": chatID, "updated_at": time.Now().UTC()})
	return result.RowsAffected == 1, translate(result.Error, "telegram link")
}

// ChatID returns the chat bound to the user, or zero.
func (repo *TelegramLinks) ChatID(ctx context.Context, userID snowflake.ID) (int64, error) {
	var link models.TelegramLink
	found, err := first(repo.db.WithContext(ctx), &link, "user_id = ?", userID)
	if err != nil || !found {
		return 0, translate(err, "telegram link")
	}
	return link.ChatID, nil
}
