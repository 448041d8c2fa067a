package exchange

import (
	"context"

	"go.uber.org/zap"

	"gameexchange/internal/domain"
)

// ListGames returns every game in the exchange.
func (s *Service) ListGames(ctx context.Context) ([]domain.Game, error) {
	return s.store.ListGames(ctx)
}

// GetGame returns one game by id.
func (s *Service) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	return s.store.GetGame(ctx, id)
}

// GetGameByName returns one game by exact name.
func (s *Service) GetGameByName(ctx context.Context, name string) (*domain.Game, error) {
	return s.store.GetGameByName(ctx, name)
}

// CreateGame lists a new game. Required fields are validated here so the
// store only ever sees complete rows.
func (s *Service) CreateGame(ctx context.Context, game domain.Game) (*domain.Game, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}
	if err := s.store.CreateGame(ctx, &game); err != nil {
		return nil, err
	}
	s.logger.Info("game listed", zap.Int64("game_id", game.ID), zap.String("name", game.Name))
	return &game, nil
}

// ReplaceGame overwrites all properties of a game.
func (s *Service) ReplaceGame(ctx context.Context, id int64, game domain.Game) (*domain.Game, error) {
	if err := validateGame(game); err != nil {
		return nil, err
	}
	return s.store.ReplaceGame(ctx, id, game)
}

// PatchGame applies a partial update; only defined fields are written.
func (s *Service) PatchGame(ctx context.Context, id int64, patch domain.GamePatch) (*domain.Game, error) {
	return s.store.PatchGame(ctx, id, patch)
}

// DeleteGame removes a game from the exchange list.
func (s *Service) DeleteGame(ctx context.Context, id int64) error {
	if err := s.store.DeleteGame(ctx, id); err != nil {
		return err
	}
	s.logger.Info("game removed", zap.Int64("game_id", id))
	return nil
}

func validateGame(game domain.Game) error {
	if game.Name == "" || game.Publisher == "" || game.ReleaseYear == 0 ||
		game.ReleaseSystem == "" || game.Condition == "" {
		return domain.E(domain.KindInvalidArgument,
			"name, publisher, releaseYear, releaseSystem, and condition are required")
	}
	return nil
}
