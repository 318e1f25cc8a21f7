package postgres

import (
	"context"

	"github.com/yoockh/auxilium/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	// CreateIfAbsent inserts u unless a user with the same external id exists.
	// created reports whether a row was written.
	CreateIfAbsent(ctx context.Context, u *models.User) (created bool, err error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) CreateIfAbsent(ctx context.Context, u *models.User) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(u)
	return res.RowsAffected > 0, res.Error
}
