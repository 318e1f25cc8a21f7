package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yoockh/auxilium/internal/cache"
	"github.com/yoockh/auxilium/internal/models"
	pgrepo "github.com/yoockh/auxilium/internal/repositories/postgres"
	"github.com/yoockh/auxilium/internal/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const maxTitleRunes = 200

// metadata is never NULL: datatypes.JSON cannot scan a NULL column
var emptyMeta = datatypes.JSON(`{}`)

type ConversationService interface {
	Create(ctx context.Context, userID, title string) (*models.Conversation, error)
	List(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	AppendExchange(ctx context.Context, conversationID, userID, userText, assistantText string, meta models.MessageMeta) error
	ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error)
}

type conversationService struct {
	convos pgrepo.ConversationRepo
	cache  cache.ConversationCache
	now    func() time.Time
}

// NewConversationService wires the store. A nil cache disables caching.
func NewConversationService(convos pgrepo.ConversationRepo, c cache.ConversationCache) ConversationService {
	if c == nil {
		c = cache.Nop{}
	}
	return &conversationService{convos: convos, cache: c, now: func() time.Time { return time.Now().UTC() }}
}

func (s *conversationService) Create(ctx context.Context, userID, title string) (*models.Conversation, error) {
	const op = "ConversationService.Create"

	title = strings.TrimSpace(title)
	if userID == "" || title == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and title are required", nil)
	}

	row := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     truncateRunes(title, maxTitleRunes),
		CreatedAt: s.now(),
	}
	if err := s.convos.Create(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create conversation", err)
	}
	_ = s.cache.Invalidate(ctx, userID)
	return row, nil
}

func (s *conversationService) List(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	const op = "ConversationService.List"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	cached, version, hit, cacheErr := s.cache.GetList(ctx, userID)
	if cacheErr == nil && hit {
		return cached, nil
	}

	list, err := s.convos.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}
	// without a version there is nothing to guard a write-back with
	if cacheErr == nil {
		_ = s.cache.SetList(ctx, userID, version, list)
	}
	return list, nil
}

func (s *conversationService) AppendExchange(ctx context.Context, conversationID, userID, userText, assistantText string, meta models.MessageMeta) error {
	const op = "ConversationService.AppendExchange"

	if userID == "" || conversationID == "" || strings.TrimSpace(userText) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "conversation_id, user_id and user_text are required", nil)
	}
	if _, err := s.owned(ctx, op, conversationID, userID); err != nil {
		return err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode message metadata", err)
	}

	// the assistant row sorts after its user row even when both share a clock tick
	at := s.now()
	rows := []models.Message{
		{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			UserID:         userID,
			Role:           models.RoleUser,
			Content:        userText,
			Metadata:       emptyMeta,
			CreatedAt:      at,
		},
		{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			UserID:         userID,
			Role:           models.RoleAssistant,
			Content:        assistantText,
			Metadata:       datatypes.JSON(metaJSON),
			CreatedAt:      at.Add(time.Microsecond),
		},
	}
	if err := s.convos.InsertMessages(ctx, rows); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store exchange", err)
	}
	return nil
}

func (s *conversationService) ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	const op = "ConversationService.ListMessages"

	if userID == "" || conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id and user_id are required", nil)
	}
	if _, err := s.owned(ctx, op, conversationID, userID); err != nil {
		return nil, err
	}

	rows, err := s.convos.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}
	return rows, nil
}

// owned loads the conversation and checks it belongs to userID. Someone else's
// conversation is reported as not found.
func (s *conversationService) owned(ctx context.Context, op, conversationID, userID string) (*models.Conversation, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "conversation not found", nil)
	}
	c, err := s.convos.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	if c.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "conversation not found", nil)
	}
	return c, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
