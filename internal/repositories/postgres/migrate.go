package postgres

import (
	"github.com/yoockh/auxilium/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables this service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{})
}
