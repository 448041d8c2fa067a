package mail

import (
	"context"

	gomail "github.com/wneessen/go-mail"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
)

// SMTPSender delivers mail over SMTP.
type SMTPSender struct {
	client *gomail.Client
}

// NewSMTPSender builds a client for the configured host. Auth is only
// enabled when a username is set, so a local relay without credentials
// still works.
func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, err, "build smtp client")
	}
	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return domain.Wrap(domain.KindInvalidArgument, err, "invalid sender address")
	}
	if err := m.To(msg.To...); err != nil {
		return domain.Wrap(domain.KindInvalidArgument, err, "invalid recipient address")
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return domain.Wrap(domain.KindTransient, err, "smtp send")
	}
	return nil
}
