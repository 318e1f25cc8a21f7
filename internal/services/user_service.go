package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yoockh/auxilium/internal/models"
	pgrepo "github.com/yoockh/auxilium/internal/repositories/postgres"
	"github.com/yoockh/auxilium/internal/utils"
)

// Identity is the subset of an identity-provider user record we keep.
type Identity struct {
	ExternalID string
	FirstName  string
	LastName   string
	Email      string
}

type UserService interface {
	// EnsureFromIdentity creates the local user for an identity-provider account.
	// Delivering the same account twice is not an error.
	EnsureFromIdentity(ctx context.Context, id Identity) (created bool, err error)
}

type userService struct {
	users pgrepo.UserRepository
}

func NewUserService(users pgrepo.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) EnsureFromIdentity(ctx context.Context, id Identity) (bool, error) {
	const op = "UserService.EnsureFromIdentity"

	if strings.TrimSpace(id.ExternalID) == "" {
		return false, utils.E(utils.CodeInvalidArgument, op, "external id is required", nil)
	}

	u := &models.User{
		ID:         uuid.NewString(),
		ExternalID: id.ExternalID,
		Name:       strings.TrimSpace(id.FirstName + " " + id.LastName),
		Email:      id.Email,
		CreatedAt:  time.Now().UTC(),
	}
	created, err := s.users.CreateIfAbsent(ctx, u)
	if err != nil {
		return false, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}
	return created, nil
}
