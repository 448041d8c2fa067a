// Package memory implements storage.Store with mutex-guarded maps. It
// mirrors the MySQL engine's semantics, including game version checks, so
// tests exercise the same contract the production store enforces.
package memory

import (
	"context"
	"sort"
	"sync"

	"gameexchange/internal/domain"
	"gameexchange/internal/storage"
)

// Engine is the in-memory store.
type Engine struct {
	mu     sync.Mutex
	games  map[int64]*domain.Game
	users  map[int64]*domain.User
	offers map[int64]*domain.Offer
	nextID map[string]int64
}

var _ storage.Store = (*Engine)(nil)

// New returns an empty store.
func New() *Engine {
	return &Engine{
		games:  make(map[int64]*domain.Game),
		users:  make(map[int64]*domain.User),
		offers: make(map[int64]*domain.Offer),
		nextID: map[string]int64{"games": 0, "users": 0, "offers": 0},
	}
}

func (e *Engine) Close() error { return nil }

func (e *Engine) next(kind string) int64 {
	e.nextID[kind]++
	return e.nextID[kind]
}

// SeedGame inserts a game with a fixed ID, for tests that need known ids.
func (e *Engine) SeedGame(game domain.Game) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.games[game.ID] = &game
	if game.ID > e.nextID["games"] {
		e.nextID["games"] = game.ID
	}
}

// SeedUser inserts a user with a fixed ID.
func (e *Engine) SeedUser(user domain.User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users[user.ID] = &user
	if user.ID > e.nextID["users"] {
		e.nextID["users"] = user.ID
	}
}

// ----- games -----

func (e *Engine) ListGames(_ context.Context) ([]domain.Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	games := make([]domain.Game, 0, len(e.games))
	for _, g := range e.games {
		games = append(games, cloneGame(*g))
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (e *Engine) GetGame(_ context.Context, id int64) (*domain.Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getGameLocked(id)
}

func (e *Engine) getGameLocked(id int64) (*domain.Game, error) {
	g, ok := e.games[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "game %d not found", id)
	}
	out := cloneGame(*g)
	return &out, nil
}

func (e *Engine) GetGameByName(_ context.Context, name string) (*domain.Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, g := range e.games {
		if g.Name == name {
			out := cloneGame(*g)
			return &out, nil
		}
	}
	return nil, domain.E(domain.KindNotFound, "game %q not found", name)
}

func (e *Engine) CreateGame(_ context.Context, game *domain.Game) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOwnerLocked(game.PreviousOwner); err != nil {
		return err
	}
	game.ID = e.next("games")
	game.Version = 0
	stored := cloneGame(*game)
	e.games[game.ID] = &stored
	return nil
}

func (e *Engine) ReplaceGame(_ context.Context, id int64, game domain.Game) (*domain.Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.games[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "game %d not found", id)
	}
	if err := e.checkOwnerLocked(game.PreviousOwner); err != nil {
		return nil, err
	}
	game.ID = id
	game.Version = cur.Version + 1
	stored := cloneGame(game)
	e.games[id] = &stored
	out := cloneGame(stored)
	return &out, nil
}

func (e *Engine) PatchGame(_ context.Context, id int64, patch domain.GamePatch) (*domain.Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if patch.Empty() {
		return nil, domain.E(domain.KindInvalidArgument, "at least one game field must be provided for update")
	}
	cur, ok := e.games[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "game %d not found", id)
	}
	if err := e.checkOwnerLocked(patch.PreviousOwner); err != nil {
		return nil, err
	}
	// All checks passed; mutate a copy and swap it in so a failed patch
	// never leaves partial writes behind.
	next := cloneGame(*cur)
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Publisher != nil {
		next.Publisher = *patch.Publisher
	}
	if patch.ReleaseYear != nil {
		next.ReleaseYear = *patch.ReleaseYear
	}
	if patch.ReleaseSystem != nil {
		next.ReleaseSystem = *patch.ReleaseSystem
	}
	if patch.Condition != nil {
		next.Condition = *patch.Condition
	}
	if patch.PreviousOwner != nil {
		owner := *patch.PreviousOwner
		next.PreviousOwner = &owner
		next.Version++
	}
	e.games[id] = &next
	out := cloneGame(next)
	return &out, nil
}

func (e *Engine) DeleteGame(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.games[id]; !ok {
		return domain.E(domain.KindNotFound, "game %d not found", id)
	}
	delete(e.games, id)
	return nil
}

func (e *Engine) checkOwnerLocked(owner *int64) error {
	if owner == nil {
		return nil
	}
	if _, ok := e.users[*owner]; !ok {
		return domain.E(domain.KindInvalidArgument, "invalid previousOwner: user %d does not exist", *owner)
	}
	return nil
}

// ----- users -----

func (e *Engine) ListUsers(_ context.Context) ([]domain.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	users := make([]domain.User, 0, len(e.users))
	for _, u := range e.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (e *Engine) GetUser(_ context.Context, id int64) (*domain.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, ok := e.users[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "user %d not found", id)
	}
	out := *u
	return &out, nil
}

func (e *Engine) CreateUser(_ context.Context, user *domain.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	user.ID = e.next("users")
	stored := *user
	e.users[user.ID] = &stored
	return nil
}

func (e *Engine) ReplaceUser(_ context.Context, id int64, user domain.User) (*domain.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.users[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "user %d not found", id)
	}
	user.ID = id
	user.Email = cur.Email
	stored := user
	e.users[id] = &stored
	out := stored
	return &out, nil
}

func (e *Engine) PatchUser(_ context.Context, id int64, patch domain.UserPatch) (*domain.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if patch.Empty() {
		return nil, domain.E(domain.KindInvalidArgument, "at least one user field must be provided for update")
	}
	cur, ok := e.users[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "user %d not found", id)
	}
	if patch.Username != nil {
		cur.Username = *patch.Username
	}
	if patch.Password != nil {
		cur.Password = *patch.Password
	}
	if patch.Address != nil {
		cur.Address = *patch.Address
	}
	out := *cur
	return &out, nil
}

func (e *Engine) DeleteUser(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.users[id]; !ok {
		return domain.E(domain.KindNotFound, "user %d not found", id)
	}
	delete(e.users, id)
	return nil
}

// ----- offers -----

func (e *Engine) GetOffer(_ context.Context, id int64) (*domain.Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.offers[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "offer %d not found", id)
	}
	out := *o
	return &out, nil
}

func (e *Engine) CreateOffer(_ context.Context, offer *domain.Offer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	offer.ID = e.next("offers")
	offer.Status = domain.OfferPending
	stored := *offer
	e.offers[offer.ID] = &stored
	return nil
}

// AcceptOffer applies the ownership swap and the terminal transition as one
// unit under the store mutex, with the same version guard as the MySQL
// engine.
func (e *Engine) AcceptOffer(_ context.Context, offerID int64, requested, offered domain.Game) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	offer, ok := e.offers[offerID]
	if !ok {
		return domain.E(domain.KindNotFound, "offer %d not found", offerID)
	}
	if offer.Status != domain.OfferPending {
		return domain.E(domain.KindInvalidState, "offer %d is not pending (status %s)", offerID, offer.Status)
	}

	reqStored, ok := e.games[requested.ID]
	if !ok {
		return domain.E(domain.KindNotFound, "game %d not found", requested.ID)
	}
	offStored, ok := e.games[offered.ID]
	if !ok {
		return domain.E(domain.KindNotFound, "game %d not found", offered.ID)
	}
	if reqStored.Version != requested.Version {
		return domain.E(domain.KindConflict, "game %d changed hands concurrently", requested.ID)
	}
	if offStored.Version != offered.Version {
		return domain.E(domain.KindConflict, "game %d changed hands concurrently", offered.ID)
	}

	reqStored.PreviousOwner, offStored.PreviousOwner = cloneOwner(offStored.PreviousOwner), cloneOwner(reqStored.PreviousOwner)
	reqStored.Version++
	offStored.Version++
	offer.Status = domain.OfferAccepted
	return nil
}

func (e *Engine) RejectOffer(_ context.Context, offerID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	offer, ok := e.offers[offerID]
	if !ok {
		return domain.E(domain.KindNotFound, "offer %d not found", offerID)
	}
	if offer.Status != domain.OfferPending {
		return domain.E(domain.KindInvalidState, "offer %d is not pending (status %s)", offerID, offer.Status)
	}
	offer.Status = domain.OfferRejected
	return nil
}

func cloneGame(g domain.Game) domain.Game {
	g.PreviousOwner = cloneOwner(g.PreviousOwner)
	return g
}

func cloneOwner(owner *int64) *int64 {
	if owner == nil {
		return nil
	}
	v := *owner
	return &v
}
