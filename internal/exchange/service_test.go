package exchange_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
	"gameexchange/internal/exchange"
	"gameexchange/internal/messaging"
	"gameexchange/internal/storage/memory"
)

func owner(id int64) *int64 { return &id }

// fixture seeds users 10 and 20 owning games 1 and 2.
func fixture(t *testing.T) (*exchange.Service, *memory.Engine, *messaging.Capture) {
	t.Helper()
	store := memory.New()
	store.SeedUser(domain.User{ID: 10, Username: "alice", Email: "alice@example.com", Password: "pw", Address: "a"})
	store.SeedUser(domain.User{ID: 20, Username: "bob", Email: "bob@example.com", Password: "pw", Address: "b"})
	store.SeedGame(domain.Game{ID: 1, Name: "Chrono Trigger", Publisher: "Square", ReleaseYear: 1995, ReleaseSystem: "SNES", Condition: "Good", PreviousOwner: owner(10)})
	store.SeedGame(domain.Game{ID: 2, Name: "Earthbound", Publisher: "Nintendo", ReleaseYear: 1994, ReleaseSystem: "SNES", Condition: "Fair", PreviousOwner: owner(20)})

	capture := &messaging.Capture{}
	service := exchange.NewService(store, capture, zap.NewNop(), otel.Tracer("test"))
	return service, store, capture
}

func TestCreateOfferSnapshotsOwners(t *testing.T) {
	service, _, capture := fixture(t)

	detail, err := service.CreateOffer(context.Background(), 1, 2)
	require.NoError(t, err)

	assert.Equal(t, domain.OfferPending, detail.Offer.Status)
	assert.Equal(t, int64(10), detail.Offer.RequestedOwner)
	assert.Equal(t, int64(20), detail.Offer.OfferedOwner)
	assert.Equal(t, "alice@example.com", detail.RequestedOwner.Email)
	assert.Equal(t, "bob@example.com", detail.OfferedOwner.Email)

	require.Len(t, capture.Messages, 1)
	assert.Equal(t, config.OfferCreatedTopic, capture.Messages[0].Topic)
	assert.Equal(t, detail.Offer.ID, capture.Messages[0].EntityID)
}

func TestCreateOfferMissingGame(t *testing.T) {
	service, _, capture := fixture(t)

	_, err := service.CreateOffer(context.Background(), 1, 99)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.Empty(t, capture.Messages, "no event without a committed write")
}

func TestCreateOfferRejectsUnownedGame(t *testing.T) {
	service, store, _ := fixture(t)
	store.SeedGame(domain.Game{ID: 3, Name: "Boxed Copy", Publisher: "X", ReleaseYear: 2000, ReleaseSystem: "PS1", Condition: "New"})

	_, err := service.CreateOffer(context.Background(), 1, 3)
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}

func TestCreateOfferSameGame(t *testing.T) {
	service, _, _ := fixture(t)

	_, err := service.CreateOffer(context.Background(), 1, 1)
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}

func TestAcceptSwapsOwnersExactlyOnce(t *testing.T) {
	service, store, capture := fixture(t)
	ctx := context.Background()

	created, err := service.CreateOffer(ctx, 1, 2)
	require.NoError(t, err)

	decided, err := service.DecideOffer(ctx, created.Offer.ID, domain.OfferAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferAccepted, decided.Offer.Status)

	game1, err := store.GetGame(ctx, 1)
	require.NoError(t, err)
	game2, err := store.GetGame(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), *game1.PreviousOwner)
	assert.Equal(t, int64(10), *game2.PreviousOwner)

	accepted := capture.ByTopic(config.OfferAcceptedTopic)
	require.Len(t, accepted, 1, "exactly one event per transition")
	assert.Equal(t, created.Offer.ID, accepted[0].EntityID)
}

func TestRejectLeavesOwnersUnchanged(t *testing.T) {
	service, store, capture := fixture(t)
	ctx := context.Background()

	created, err := service.CreateOffer(ctx, 1, 2)
	require.NoError(t, err)

	decided, err := service.DecideOffer(ctx, created.Offer.ID, domain.OfferRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferRejected, decided.Offer.Status)

	game1, err := store.GetGame(ctx, 1)
	require.NoError(t, err)
	game2, err := store.GetGame(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(10), *game1.PreviousOwner)
	assert.Equal(t, int64(20), *game2.PreviousOwner)

	require.Len(t, capture.ByTopic(config.OfferRejectedTopic), 1)
}

func TestSecondDecisionFailsInvalidState(t *testing.T) {
	service, _, capture := fixture(t)
	ctx := context.Background()

	created, err := service.CreateOffer(ctx, 1, 2)
	require.NoError(t, err)

	_, err = service.DecideOffer(ctx, created.Offer.ID, domain.OfferAccepted)
	require.NoError(t, err)

	for _, decision := range []domain.OfferStatus{domain.OfferAccepted, domain.OfferRejected} {
		_, err = service.DecideOffer(ctx, created.Offer.ID, decision)
		assert.True(t, domain.IsKind(err, domain.KindInvalidState), "decision %s on terminal offer", decision)
	}

	// The failed decisions must not have published anything further.
	assert.Len(t, capture.Messages, 2, "one created + one accepted event only")
}

func TestDecideOfferInvalidDecision(t *testing.T) {
	service, _, _ := fixture(t)
	ctx := context.Background()

	created, err := service.CreateOffer(ctx, 1, 2)
	require.NoError(t, err)

	for _, decision := range []domain.OfferStatus{domain.OfferPending, "accepted", "Done", ""} {
		_, err := service.DecideOffer(ctx, created.Offer.ID, decision)
		assert.True(t, domain.IsKind(err, domain.KindInvalidArgument), "decision %q", decision)
	}
}

func TestDecideOfferNotFound(t *testing.T) {
	service, _, _ := fixture(t)

	_, err := service.DecideOffer(context.Background(), 404, domain.OfferAccepted)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	service, store, capture := fixture(t)
	ctx := context.Background()

	created, err := service.CreateOffer(ctx, 1, 2)
	require.NoError(t, err)

	capture.Err = domain.E(domain.KindTransient, "broker unavailable")
	decided, err := service.DecideOffer(ctx, created.Offer.ID, domain.OfferAccepted)
	require.NoError(t, err, "the committed transition must not surface a publish failure")
	assert.Equal(t, domain.OfferAccepted, decided.Offer.Status)

	game1, err := store.GetGame(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), *game1.PreviousOwner, "swap stays committed")
}

func TestPasswordChangePublishesEvent(t *testing.T) {
	service, _, capture := fixture(t)
	ctx := context.Background()

	newPw := "s3cret"
	_, err := service.PatchUser(ctx, 10, domain.UserPatch{Password: &newPw})
	require.NoError(t, err)

	events := capture.ByTopic(config.PasswordChangedTopic)
	require.Len(t, events, 1)
	assert.Equal(t, int64(10), events[0].EntityID)

	// Patching without touching the password publishes nothing.
	addr := "new address"
	_, err = service.PatchUser(ctx, 10, domain.UserPatch{Address: &addr})
	require.NoError(t, err)
	assert.Len(t, capture.ByTopic(config.PasswordChangedTopic), 1)

	// Replacing with the same password publishes nothing either.
	_, err = service.ReplaceUser(ctx, 10, domain.User{Username: "alice", Password: newPw, Address: "a"})
	require.NoError(t, err)
	assert.Len(t, capture.ByTopic(config.PasswordChangedTopic), 1)
}

func TestCreateUserValidation(t *testing.T) {
	service, _, _ := fixture(t)

	_, err := service.CreateUser(context.Background(), domain.User{Username: "carol"})
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}

func TestCreateGameValidatesOwnerReference(t *testing.T) {
	service, _, _ := fixture(t)

	_, err := service.CreateGame(context.Background(), domain.Game{
		Name: "FF VI", Publisher: "Square", ReleaseYear: 1994, ReleaseSystem: "SNES",
		Condition: "Good", PreviousOwner: owner(999),
	})
	assert.True(t, domain.IsKind(err, domain.KindInvalidArgument))
}
