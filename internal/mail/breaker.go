package mail

import (
	"context"
	"errors"

	"github.com/eapache/go-resiliency/breaker"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
)

// BreakerSender wraps a Sender with a circuit breaker so a failing
// transport fails fast instead of stalling the consumer partition.
type BreakerSender struct {
	next    Sender
	breaker *breaker.Breaker
}

// NewBreakerSender wraps next with the configured thresholds.
func NewBreakerSender(next Sender) *BreakerSender {
	return &BreakerSender{
		next: next,
		breaker: breaker.New(
			config.MailBreakerErrorThreshold,
			config.MailBreakerSuccessThreshold,
			config.MailBreakerTimeout,
		),
	}
}

func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	var sendErr error
	err := b.breaker.Run(func() error {
		sendErr = b.next.Send(ctx, msg)
		if permanent(sendErr) {
			// Bad input does not open the circuit against a healthy
			// transport.
			return nil
		}
		return sendErr
	})
	if errors.Is(err, breaker.ErrBreakerOpen) {
		return domain.Wrap(domain.KindTransient, err, "mail transport circuit open")
	}
	if sendErr != nil {
		return sendErr
	}
	return err
}

func permanent(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument, domain.KindNotFound:
		return true
	}
	return false
}
