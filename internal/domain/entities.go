package domain

// User is a registered member of the exchange.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
	Password string `db:"password" json:"-"`
	Address  string `db:"address" json:"address"`
}

// Game is a tradeable item. PreviousOwner is nil for games that entered the
// exchange without an owner; such games cannot be part of an offer.
// Version is bumped on every ownership write and guards against concurrent
// swaps touching the same game.
type Game struct {
	ID            int64  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Publisher     string `db:"publisher" json:"publisher"`
	ReleaseYear   int    `db:"releaseYear" json:"releaseYear"`
	ReleaseSystem string `db:"releaseSystem" json:"releaseSystem"`
	Condition     string `db:"condition" json:"condition"`
	PreviousOwner *int64 `db:"previousOwner" json:"previousOwner"`
	Version       int64  `db:"version" json:"-"`
}

// OfferStatus is the lifecycle state of an offer. Pending is the only
// non-terminal state.
type OfferStatus string

const (
	OfferPending  OfferStatus = "Pending"
	OfferAccepted OfferStatus = "Accepted"
	OfferRejected OfferStatus = "Rejected"
)

// Valid reports whether s is one of the known states.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferAccepted, OfferRejected:
		return true
	}
	return false
}

// Terminal reports whether an offer in state s can never transition again.
func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferRejected
}

// Offer is a proposed trade between two games. RequestedOwner and
// OfferedOwner snapshot the games' owners at creation time; they are not
// refreshed if a game changes hands before the decision.
type Offer struct {
	ID             int64       `db:"id" json:"id"`
	GameRequested  int64       `db:"gameRequested" json:"gameRequested"`
	GameOffered    int64       `db:"gameOffered" json:"gameOffered"`
	RequestedOwner int64       `db:"requestedOwner" json:"requestedOwner"`
	OfferedOwner   int64       `db:"offeredOwner" json:"offeredOwner"`
	Status         OfferStatus `db:"status" json:"status"`
}

// GamePatch carries a partial game update. A nil field is absent and left
// untouched; a non-nil field is written even when it points at a zero value.
type GamePatch struct {
	Name          *string `json:"name"`
	Publisher     *string `json:"publisher"`
	ReleaseYear   *int    `json:"releaseYear"`
	ReleaseSystem *string `json:"releaseSystem"`
	Condition     *string `json:"condition"`
	PreviousOwner *int64  `json:"previousOwner"`
}

// Empty reports whether the patch sets no fields at all.
func (p GamePatch) Empty() bool {
	return p.Name == nil && p.Publisher == nil && p.ReleaseYear == nil &&
		p.ReleaseSystem == nil && p.Condition == nil && p.PreviousOwner == nil
}

// UserPatch carries a partial user update with the same defined-vs-absent
// semantics as GamePatch.
type UserPatch struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Address  *string `json:"address"`
}

// Empty reports whether the patch sets no fields at all.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Password == nil && p.Address == nil
}
