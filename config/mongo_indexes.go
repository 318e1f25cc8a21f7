package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const RelayEventsCollection = "relay_events"

func EnsureJournalIndexes(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return errors.New("mongo database is nil; call NewMongo first")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := db.Collection(RelayEventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		// documents carry their own expiry instant
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetName("by_request_id"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("by_user_started"),
		},
	})
	return err
}
