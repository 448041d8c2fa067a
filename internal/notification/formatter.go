// Package notification turns domain events back into full context and
// dispatches email. The consumer only ever receives bare identifiers; all
// entity state is re-resolved through the store's read path at delivery
// time.
package notification

import (
	"context"
	"fmt"

	"gameexchange/internal/config"
	"gameexchange/internal/mail"
	"gameexchange/internal/storage"
)

// Formatter resolves an event into a ready-to-send message.
type Formatter struct {
	store storage.Store
	from  string
}

// NewFormatter builds a formatter sending from the given address.
func NewFormatter(store storage.Store, from string) *Formatter {
	return &Formatter{store: store, from: from}
}

// Format builds the email for one event. Unrecognized topics produce the
// generic fallback notice addressed to internal support; they are never
// dropped.
func (f *Formatter) Format(ctx context.Context, topic string, entityID int64) (*mail.Message, error) {
	switch topic {
	case config.OfferCreatedTopic:
		return f.offerMail(ctx, entityID, "Offer Created",
			"A new offer has been created. %s has been offered in exchange for %s.")
	case config.OfferAcceptedTopic:
		return f.offerMail(ctx, entityID, "Offer Accepted",
			"Your offer has been accepted. The owners for %[2]s and %[1]s have been swapped.")
	case config.OfferRejectedTopic:
		return f.offerMail(ctx, entityID, "Offer Rejected",
			"Your offer has been rejected. The owners for %[2]s and %[1]s stay the same.")
	case config.PasswordChangedTopic:
		return f.passwordMail(ctx, entityID)
	default:
		return &mail.Message{
			From:    f.from,
			To:      []string{config.SupportAddress},
			Subject: "Unhandled Exchange Notification",
			Body:    fmt.Sprintf("You have a notification from the video game exchange system. (unrecognized topic %q, id %d)", topic, entityID),
		}, nil
	}
}

// offerMail resolves the offer and both owners. bodyFmt takes the offered
// game name first and the requested game name second.
func (f *Formatter) offerMail(ctx context.Context, offerID int64, subject, bodyFmt string) (*mail.Message, error) {
	offer, err := f.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	requested, err := f.store.GetGame(ctx, offer.GameRequested)
	if err != nil {
		return nil, err
	}
	offered, err := f.store.GetGame(ctx, offer.GameOffered)
	if err != nil {
		return nil, err
	}
	requestedOwner, err := f.store.GetUser(ctx, offer.RequestedOwner)
	if err != nil {
		return nil, err
	}
	offeredOwner, err := f.store.GetUser(ctx, offer.OfferedOwner)
	if err != nil {
		return nil, err
	}
	return &mail.Message{
		From:    f.from,
		To:      []string{requestedOwner.Email, offeredOwner.Email},
		Subject: subject,
		Body:    fmt.Sprintf(bodyFmt, offered.Name, requested.Name),
	}, nil
}

func (f *Formatter) passwordMail(ctx context.Context, userID int64) (*mail.Message, error) {
	user, err := f.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &mail.Message{
		From:    f.from,
		To:      []string{user.Email},
		Subject: "Password Updated",
		Body: "Your password for the VideoGame Exchange has been updated. " +
			"If this wasn't you, please contact support at " + config.SupportAddress,
	}, nil
}
