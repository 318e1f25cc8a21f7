package models

import "time"

// User mirrors an account of the external identity provider.
type User struct {
	ID         string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ExternalID string    `gorm:"column:external_id;type:text;uniqueIndex" json:"external_id"`
	Name       string    `gorm:"column:name;type:text" json:"name"`
	Email      string    `gorm:"column:email;type:text" json:"email,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string { return "users" }
