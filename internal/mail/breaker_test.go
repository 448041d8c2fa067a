package mail_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
	"gameexchange/internal/mail"
)

func TestBreakerPassesThroughSuccess(t *testing.T) {
	capture := &mail.Capture{}
	sender := mail.NewBreakerSender(capture)

	err := sender.Send(context.Background(), mail.Message{To: []string{"alice@example.com"}, Subject: "hi"})
	require.NoError(t, err)
	assert.Len(t, capture.Messages, 1)
}

func TestBreakerIgnoresPermanentFailures(t *testing.T) {
	capture := &mail.Capture{Err: domain.E(domain.KindInvalidArgument, "malformed recipient address")}
	sender := mail.NewBreakerSender(capture)
	ctx := context.Background()
	msg := mail.Message{To: []string{"not-an-address"}}

	// Well past the error threshold; bad input must not open the circuit.
	for i := 0; i < 2*config.MailBreakerErrorThreshold; i++ {
		err := sender.Send(ctx, msg)
		require.True(t, domain.IsKind(err, domain.KindInvalidArgument))
	}

	capture.Err = nil
	require.NoError(t, sender.Send(ctx, mail.Message{To: []string{"alice@example.com"}}))
	assert.Len(t, capture.Messages, 1, "transport stays reachable for valid input")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	capture := &mail.Capture{Err: errors.New("connection refused")}
	sender := mail.NewBreakerSender(capture)
	ctx := context.Background()
	msg := mail.Message{To: []string{"alice@example.com"}}

	for i := 0; i < config.MailBreakerErrorThreshold; i++ {
		err := sender.Send(ctx, msg)
		require.Error(t, err)
		assert.False(t, domain.IsKind(err, domain.KindTransient), "underlying error passes through while closed")
	}

	// The breaker is now open: calls fail fast without touching the
	// transport, and surface as retryable.
	before := len(capture.Messages)
	err := sender.Send(ctx, msg)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTransient))
	assert.Len(t, capture.Messages, before)
}
