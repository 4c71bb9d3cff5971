package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bloodbank/internal/adapters/persistence/models"
	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"
	"bloodbank/internal/pkg/password"

	"go.uber.org/zap"
)

// StaffService manages blood bank staff accounts
type StaffService struct {
	userRepo repositories.UserRepository
	options
}

// NewStaffService creates a new staff service
func NewStaffService(userRepo repositories.UserRepository, opts ...Option) *StaffService {
	return &StaffService{
		userRepo: userRepo,
		options:  newOptions(opts),
	}
}

// CreateStaffInput represents a new staff account
type CreateStaffInput struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create adds a staff account. Role defaults to STAFF.
func (s *StaffService) Create(ctx context.Context, input *CreateStaffInput) (*models.UserResponse, error) {
	username := strings.TrimSpace(input.Username)
	if len(username) < 3 || len(username) > 50 {
		return nil, domain.NewValidationError("username", "must be 3 to 50 characters")
	}
	if !password.Acceptable(input.Password) {
		return nil, domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", password.MinLength))
	}
	role := strings.ToUpper(strings.TrimSpace(input.Role))
	if role == "" {
		role = models.RoleStaff
	}
	if role != models.RoleStaff && role != models.RoleAdmin {
		return nil, domain.NewValidationError("role", "must be ADMIN or STAFF")
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: username,
		FullName: strings.TrimSpace(input.FullName),
		Password: hashed,
		Role:     role,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	s.logger.Info("staff account created", zap.String("username", username), zap.String("role", role))
	return user.ToResponse(), nil
}

// List returns a page of staff accounts
func (s *StaffService) List(ctx context.Context, offset, limit int) ([]*models.UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*models.UserResponse, len(users))
	for i, u := range users {
		out[i] = u.ToResponse()
	}
	return out, total, nil
}
