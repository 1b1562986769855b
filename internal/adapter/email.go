package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/event"
)

// subjectPrefix is prepended to every outgoing notification subject.
const subjectPrefix = "Nudge - "

// Email delivers notifications over SMTP using go-mail.
type Email struct {
	settings config.SettingsLoader
}

// NewEmail creates an Email adapter. SMTP settings are re-read per delivery.
func NewEmail(settings config.SettingsLoader) *Email {
	return &Email{settings: settings}
}

func (e *Email) Name() string { return "email" }

func (e *Email) IsConfigured() bool {
	s, err := e.settings()
	return err == nil && s.SMTPHost != "" && s.SMTPFrom != "" && s.SMTPTo != ""
}

func (e *Email) Deliver(ctx context.Context, ev *event.Notification) Result {
	s, err := e.settings()
	if err != nil {
		return failure(e.Name(), fmt.Sprintf("loading settings: %v", err))
	}
	if s.SMTPHost == "" || s.SMTPFrom == "" || s.SMTPTo == "" {
		return failure(e.Name(), "SMTP host, from, or to not configured")
	}

	m := mail.NewMsg()
	if err := m.From(s.SMTPFrom); err != nil {
		return failure(e.Name(), fmt.Sprintf("invalid from address: %v", err))
	}
	for _, r := range strings.Split(s.SMTPTo, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if err := m.To(r); err != nil {
			return failure(e.Name(), fmt.Sprintf("invalid recipient %q: %v", r, err))
		}
	}

	m.Subject(subjectPrefix + ev.EventType)
	m.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("%s\n\nPlan: %s\nCorrelation: %s",
		ev.Message, ev.Plan.Title, ev.CorrelationID))

	c, err := mail.NewClient(s.SMTPHost,
		mail.WithPort(s.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.SMTPUsername),
		mail.WithPassword(s.SMTPPassword),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(s.SMTPEncryption)),
	)
	if err != nil {
		return failure(e.Name(), fmt.Sprintf("creating mail client: %v", err))
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return failure(e.Name(), fmt.Sprintf("sending mail: %v", err))
	}
	return success(e.Name())
}

// tlsPolicyFromEncryption converts the encryption string to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
