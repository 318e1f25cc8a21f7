package services

import (
	"context"
	"time"

	"github.com/yoockh/auxilium/internal/models"
	mongorepo "github.com/yoockh/auxilium/internal/repositories/mongo"
	"github.com/yoockh/auxilium/internal/utils"
)

// JournalService records relayed exchanges. With no repository it discards them.
type JournalService interface {
	Record(ctx context.Context, e *models.RelayEvent) error
	Recent(ctx context.Context, userID string, limit int64) ([]models.RelayEvent, error)
}

type journalService struct {
	events mongorepo.RelayEventRepository
	ttl    time.Duration
}

func NewJournalService(events mongorepo.RelayEventRepository, ttl time.Duration) JournalService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &journalService{events: events, ttl: ttl}
}

func (s *journalService) Record(ctx context.Context, e *models.RelayEvent) error {
	const op = "JournalService.Record"

	if s.events == nil {
		return nil
	}
	if e == nil || e.Route == "" || e.Status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "route and status are required", nil)
	}

	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	e.ExpiresAt = e.StartedAt.Add(s.ttl)

	if err := s.events.Insert(ctx, e); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to record relay event", err)
	}
	return nil
}

func (s *journalService) Recent(ctx context.Context, userID string, limit int64) ([]models.RelayEvent, error) {
	const op = "JournalService.Recent"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if s.events == nil {
		return []models.RelayEvent{}, nil
	}
	out, err := s.events.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to list relay events", err)
	}
	return out, nil
}
