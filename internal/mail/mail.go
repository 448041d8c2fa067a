// Package mail is the outgoing email transport consumed by the
// notification pipeline.
package mail

import "context"

// Message is one plain-text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Sender delivers a message. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Capture is a Sender that records messages for assertions in tests.
type Capture struct {
	Messages []Message
	Err      error
}

func (c *Capture) Send(_ context.Context, msg Message) error {
	if c.Err != nil {
		return c.Err
	}
	c.Messages = append(c.Messages, msg)
	return nil
}
