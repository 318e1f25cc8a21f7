package cache

import (
	"context"

	"github.com/yoockh/auxilium/internal/models"
)

// ConversationCache holds each user's conversation list. Implementations must
// treat corrupt entries as misses.
//
// GetList reports a version on a miss. SetList stores the list only while that
// version is current, so a list read from the database before a concurrent
// Invalidate is never written back.
type ConversationCache interface {
	GetList(ctx context.Context, userID string) (list []models.ConversationSummary, version int64, hit bool, err error)
	SetList(ctx context.Context, userID string, version int64, list []models.ConversationSummary) error
	Invalidate(ctx context.Context, userID string) error
}

// Nop is used when no cache backend is configured.
type Nop struct{}

func (Nop) GetList(context.Context, string) ([]models.ConversationSummary, int64, bool, error) {
	return nil, 0, false, nil
}

func (Nop) SetList(context.Context, string, int64, []models.ConversationSummary) error { return nil }

func (Nop) Invalidate(context.Context, string) error { return nil }
