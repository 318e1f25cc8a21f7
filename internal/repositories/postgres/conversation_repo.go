package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/auxilium/internal/models"
	"github.com/yoockh/auxilium/internal/utils"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	Create(ctx context.Context, c *models.Conversation) error
	ListByUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	InsertMessages(ctx context.Context, msgs []models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListByUser returns the user's conversations, oldest first.
func (r *conversationRepo) ListByUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	rows := []models.ConversationSummary{}
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Select("id", "title").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// InsertMessages writes all rows in one INSERT statement, so either every row
// lands or none does.
func (r *conversationRepo) InsertMessages(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&msgs).Error
}

// ListMessages returns the conversation's messages oldest first. Rows sharing a
// timestamp keep the user row ahead of its reply.
func (r *conversationRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("CASE role WHEN 'user' THEN 0 ELSE 1 END").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
