package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/wneessen/go-mail"
)

//go:embed templates/password_reset.tmpl
var templateFS embed.FS

var resetTmpl = template.Must(template.ParseFS(templateFS, "templates/password_reset.tmpl"))

const resetSubject = "Reset your league admin password"

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("mailer: smtp host not configured")

// Config holds the SMTP transport settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// Message is a plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer sends emails via SMTP.
type Mailer struct {
	cfg    Config
	sendFn func(ctx context.Context, msg Message) error
}

func New(cfg Config) *Mailer {
	m := &Mailer{cfg: cfg}
	m.sendFn = m.send
	return m
}

// Configured reports whether an SMTP host is set.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != ""
}

// SendPasswordReset emails a reset link to the admin.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, link string, expiresAt time.Time) error {
	if !m.Configured() {
		return ErrNotConfigured
	}

	var body bytes.Buffer
	err := resetTmpl.Execute(&body, struct {
		Link      string
		ExpiresAt string
	}{
		Link:      link,
		ExpiresAt: expiresAt.UTC().Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return fmt.Errorf("mailer: render reset email: %w", err)
	}

	return m.sendFn(ctx, Message{
		To:      []string{to},
		Subject: resetSubject,
		Body:    body.String(),
	})
}

func (m *Mailer) buildMsg(msg Message) (*mail.Msg, error) {
	gm := mail.NewMsg()
	var err error
	if m.cfg.FromName != "" {
		err = gm.FromFormat(m.cfg.FromName, m.cfg.FromAddress)
	} else {
		err = gm.From(m.cfg.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("mailer: from address: %w", err)
	}
	if err := gm.To(msg.To...); err != nil {
		return nil, fmt.Errorf("mailer: recipient: %w", err)
	}
	gm.Subject(msg.Subject)
	gm.SetDate()
	gm.SetMessageID()
	gm.SetBodyString(mail.TypeTextPlain, msg.Body)
	return gm, nil
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	gm, err := m.buildMsg(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, gm); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
