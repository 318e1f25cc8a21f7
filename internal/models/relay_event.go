package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RelayStatus string

const (
	RelayCompleted   RelayStatus = "completed"
	RelayFailed      RelayStatus = "failed"      // nothing was written to the client
	RelayInterrupted RelayStatus = "interrupted" // failed after the first byte
)

// RelayEvent is one journal entry per relayed exchange.
type RelayEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID string             `bson:"request_id" json:"request_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Route     string             `bson:"route" json:"route"`
	Provider  string             `bson:"provider" json:"provider"`
	Model     string             `bson:"model,omitempty" json:"model,omitempty"`

	Status    RelayStatus `bson:"status" json:"status"`
	Fragments int64       `bson:"fragments" json:"fragments"`
	Bytes     int64       `bson:"bytes" json:"bytes"`
	Error     string      `bson:"error,omitempty" json:"error,omitempty"`

	StartedAt  time.Time `bson:"started_at" json:"started_at"`
	DurationMS int64     `bson:"duration_ms" json:"duration_ms"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}
