// Package storage defines the persistence contract for the exchange and its
// notification read path, plus the engines implementing it.
package storage

import (
	"context"

	"gameexchange/internal/domain"
)

// GameStore persists games. Create assigns the ID. Replace and Patch
// return the updated row; writes that reference an owner must verify the
// user exists and fail with an InvalidArgument-kind error otherwise.
type GameStore interface {
	ListGames(ctx context.Context) ([]domain.Game, error)
	GetGame(ctx context.Context, id int64) (*domain.Game, error)
	GetGameByName(ctx context.Context, name string) (*domain.Game, error)
	CreateGame(ctx context.Context, game *domain.Game) error
	ReplaceGame(ctx context.Context, id int64, game domain.Game) (*domain.Game, error)
	PatchGame(ctx context.Context, id int64, patch domain.GamePatch) (*domain.Game, error)
	DeleteGame(ctx context.Context, id int64) error
}

// UserStore persists users.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	ReplaceUser(ctx context.Context, id int64, user domain.User) (*domain.User, error)
	PatchUser(ctx context.Context, id int64, patch domain.UserPatch) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// OfferStore persists offers. Offers are append-only: there is no delete,
// and the only mutation is the single terminal transition.
//
// AcceptOffer atomically swaps PreviousOwner between the two games and
// moves the offer to Accepted. Both ownership writes are version-checked
// against the games passed in; a stale version fails the whole unit with a
// Conflict-kind error and no partial write survives. RejectOffer moves a
// pending offer to Rejected and touches nothing else. Both fail with an
// InvalidState-kind error when the offer is already terminal.
type OfferStore interface {
	GetOffer(ctx context.Context, id int64) (*domain.Offer, error)
	CreateOffer(ctx context.Context, offer *domain.Offer) error
	AcceptOffer(ctx context.Context, offerID int64, requested, offered domain.Game) error
	RejectOffer(ctx context.Context, offerID int64) error
}

// Store is the full persistence surface.
type Store interface {
	GameStore
	UserStore
	OfferStore
	Close() error
}
