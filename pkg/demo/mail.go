package demo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"
)

// Message is an HTML email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs msg at info level.
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not sent, logging instead",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.HTML),
	)
	return nil
}

// SMTPMailer sends mail through an SMTP server, authenticating with PLAIN
// when a username is set.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string

	// ImplicitTLS dials TLS directly (usually port 465). Otherwise the
	// connection is upgraded with STARTTLS when the server offers it.
	ImplicitTLS bool
}

// Send delivers msg. The context bounds the whole SMTP exchange.
func (m SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm, err := newMsg(msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.Host, m.options()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m SMTPMailer) options() []mail.Option {
	opts := []mail.Option{mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if m.ImplicitTLS {
		opts = []mail.Option{mail.WithSSL()}
	}
	if m.Port > 0 {
		opts = append(opts, mail.WithPort(m.Port))
	}
	if m.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password),
		)
	}
	return opts
}

// newMsg builds an HTML message. Line breaks in the subject are replaced
// so they cannot start a new header.
func newMsg(msg Message) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(msg.From); err != nil {
		return nil, fmt.Errorf("mail from %q: %w", msg.From, err)
	}
	if err := mm.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail to %q: %w", msg.To, err)
	}
	mm.Subject(strings.NewReplacer("\r", " ", "\n", " ").Replace(msg.Subject))
	mm.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return mm, nil
}
