package exchange

import (
	"context"

	"go.uber.org/zap"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
)

// ListUsers returns every registered user.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

// GetUser returns one user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.store.GetUser(ctx, id)
}

// CreateUser registers a new user.
func (s *Service) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.Username == "" || user.Email == "" || user.Password == "" || user.Address == "" {
		return nil, domain.E(domain.KindInvalidArgument,
			"username, email, password, and address are required")
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return &user, nil
}

// ReplaceUser overwrites username, password and address. The email is
// immutable. A changed password publishes a password-changed event after
// the write commits.
func (s *Service) ReplaceUser(ctx context.Context, id int64, user domain.User) (*domain.User, error) {
	if user.Username == "" || user.Password == "" || user.Address == "" {
		return nil, domain.E(domain.KindInvalidArgument,
			"username, password and address are required")
	}
	current, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.ReplaceUser(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if current.Password != updated.Password {
		s.publishEvent(ctx, config.PasswordChangedTopic, id)
	}
	return updated, nil
}

// PatchUser applies a partial update; only defined fields are written. A
// changed password publishes a password-changed event after the write
// commits.
func (s *Service) PatchUser(ctx context.Context, id int64, patch domain.UserPatch) (*domain.User, error) {
	current, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.PatchUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if patch.Password != nil && current.Password != updated.Password {
		s.publishEvent(ctx, config.PasswordChangedTopic, id)
	}
	return updated, nil
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user removed", zap.Int64("user_id", id))
	return nil
}
