// Package exchange holds the trade negotiation core: games and users
// management plus the offer state machine with its ownership swap.
package exchange

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
	"gameexchange/internal/messaging"
	"gameexchange/internal/platform/observability"
	"gameexchange/internal/storage"
)

// Service orchestrates the exchange. Every successful state transition
// publishes exactly one event, after the store write has committed. A
// publish failure never rolls anything back: the store is the source of
// truth and notifications are a best-effort side channel.
type Service struct {
	store     storage.Store
	publisher messaging.Publisher
	logger    observability.Logger
	tracer    observability.Tracer
}

// NewService creates a service instance with explicit dependencies.
func NewService(store storage.Store, publisher messaging.Publisher, logger observability.Logger, tracer observability.Tracer) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		tracer:    tracer,
	}
}

// OfferDetail is an offer with its references resolved for the caller.
type OfferDetail struct {
	Offer          domain.Offer `json:"offer"`
	GameRequested  domain.Game  `json:"gameRequested"`
	GameOffered    domain.Game  `json:"gameOffered"`
	RequestedOwner domain.User  `json:"requestedOwner"`
	OfferedOwner   domain.User  `json:"offeredOwner"`
}

// CreateOffer opens a trade proposal between two games. The owners are
// snapshotted from the games' current previousOwner fields; the snapshot is
// not refreshed if a game changes hands before the decision.
func (s *Service) CreateOffer(ctx context.Context, gameRequestedID, gameOfferedID int64) (*OfferDetail, error) {
	ctx, span := s.tracer.Start(ctx, "create_offer")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("offer.game_requested", gameRequestedID),
		attribute.Int64("offer.game_offered", gameOfferedID),
	)

	if gameRequestedID == gameOfferedID {
		return nil, domain.E(domain.KindInvalidArgument, "a game cannot be traded for itself")
	}

	requested, err := s.store.GetGame(ctx, gameRequestedID)
	if err != nil {
		return nil, err
	}
	offered, err := s.store.GetGame(ctx, gameOfferedID)
	if err != nil {
		return nil, err
	}
	if requested.PreviousOwner == nil || offered.PreviousOwner == nil {
		return nil, domain.E(domain.KindInvalidArgument, "both games must have an owner to be traded")
	}

	offer := &domain.Offer{
		GameRequested:  requested.ID,
		GameOffered:    offered.ID,
		RequestedOwner: *requested.PreviousOwner,
		OfferedOwner:   *offered.PreviousOwner,
		Status:         domain.OfferPending,
	}
	if err := s.store.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, config.OfferCreatedTopic, offer.ID)

	s.logger.Info("offer created",
		zap.Int64("offer_id", offer.ID),
		zap.Int64("game_requested", requested.ID),
		zap.Int64("game_offered", offered.ID),
	)
	return s.resolveDetail(ctx, offer)
}

// DecideOffer applies the single terminal transition. Accepted swaps the
// two games' owners and the status change as one atomic unit; Rejected only
// flips the status. A second decision on the same offer fails InvalidState.
func (s *Service) DecideOffer(ctx context.Context, offerID int64, decision domain.OfferStatus) (*OfferDetail, error) {
	ctx, span := s.tracer.Start(ctx, "decide_offer")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("offer.id", offerID),
		attribute.String("offer.decision", string(decision)),
	)

	if decision != domain.OfferAccepted && decision != domain.OfferRejected {
		return nil, domain.E(domain.KindInvalidArgument, "decision must be %s or %s, got %q",
			domain.OfferAccepted, domain.OfferRejected, decision)
	}

	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}

	switch decision {
	case domain.OfferAccepted:
		if err := s.acceptOffer(ctx, offer); err != nil {
			return nil, err
		}
		s.publishEvent(ctx, config.OfferAcceptedTopic, offer.ID)
	case domain.OfferRejected:
		if err := s.store.RejectOffer(ctx, offer.ID); err != nil {
			return nil, err
		}
		s.publishEvent(ctx, config.OfferRejectedTopic, offer.ID)
	}

	offer.Status = decision
	s.logger.Info("offer decided",
		zap.Int64("offer_id", offer.ID),
		zap.String("decision", string(decision)),
	)
	return s.resolveDetail(ctx, offer)
}

// acceptOffer loads both games at their current versions and hands the
// swap to the store as a single transaction.
func (s *Service) acceptOffer(ctx context.Context, offer *domain.Offer) error {
	requested, err := s.store.GetGame(ctx, offer.GameRequested)
	if err != nil {
		return err
	}
	offered, err := s.store.GetGame(ctx, offer.GameOffered)
	if err != nil {
		return err
	}
	return s.store.AcceptOffer(ctx, offer.ID, *requested, *offered)
}

// GetOffer returns an offer with resolved references.
func (s *Service) GetOffer(ctx context.Context, offerID int64) (*OfferDetail, error) {
	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	return s.resolveDetail(ctx, offer)
}

func (s *Service) resolveDetail(ctx context.Context, offer *domain.Offer) (*OfferDetail, error) {
	requested, err := s.store.GetGame(ctx, offer.GameRequested)
	if err != nil {
		return nil, err
	}
	offered, err := s.store.GetGame(ctx, offer.GameOffered)
	if err != nil {
		return nil, err
	}
	requestedOwner, err := s.store.GetUser(ctx, offer.RequestedOwner)
	if err != nil {
		return nil, err
	}
	offeredOwner, err := s.store.GetUser(ctx, offer.OfferedOwner)
	if err != nil {
		return nil, err
	}
	return &OfferDetail{
		Offer:          *offer,
		GameRequested:  *requested,
		GameOffered:    *offered,
		RequestedOwner: *requestedOwner,
		OfferedOwner:   *offeredOwner,
	}, nil
}

// publishEvent emits the post-commit notification. Failures are logged and
// swallowed; a crash between commit and publish loses the notification but
// never the state.
func (s *Service) publishEvent(ctx context.Context, topic string, entityID int64) {
	if err := s.publisher.Publish(ctx, topic, entityID); err != nil {
		s.logger.Error("event publish failed, state already committed",
			zap.String("topic", topic),
			zap.Int64("entity_id", entityID),
			zap.Error(err),
		)
	}
}
