package mongo

import (
	"context"
	"time"

	"github.com/yoockh/auxilium/config"
	"github.com/yoockh/auxilium/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RelayEventRepository interface {
	Insert(ctx context.Context, e *models.RelayEvent) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.RelayEvent, error)
}

type relayEventRepo struct {
	col *mongo.Collection
}

func NewRelayEventRepo(db *mongo.Database) RelayEventRepository {
	return &relayEventRepo{col: db.Collection(config.RelayEventsCollection)}
}

func (r *relayEventRepo) Insert(ctx context.Context, e *models.RelayEvent) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

// ListByUser returns the newest events first.
func (r *relayEventRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]models.RelayEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "started_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.RelayEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
