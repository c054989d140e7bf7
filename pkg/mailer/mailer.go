package mailer

import (
	"bytes"
	"fmt"
	"io"
	"log"
	netmail "net/mail"
	"net/smtp"
	"time"

	"voicetask-backend/pkg/config"

	"github.com/emersion/go-message/mail"
)

// Mailer sends sign-in link emails over SMTP. Without SMTP settings it
// logs the link instead, which keeps local development passwordless too.
type Mailer struct {
	host string
	port string
	user string
	pass string
	from *mail.Address
}

func New(cfg *config.Config) *Mailer {
	from := &mail.Address{Name: "VoiceTask", Address: "no-reply@voicetask.local"}
	if parsed, err := netmail.ParseAddress(cfg.MailFrom); err == nil {
		from = &mail.Address{Name: parsed.Name, Address: parsed.Address}
	}
	return &Mailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: from,
	}
}

// SendMagicLink emails a single-use sign-in link to the address.
func (m *Mailer) SendMagicLink(to, link string, expiry time.Duration) error {
	subject := "Your VoiceTask sign-in link"
	body := fmt.Sprintf("Click the link below to sign in to VoiceTask. It expires in %d minutes and can be used once.\n\n%s\n\nIf you did not request this, you can ignore this email.\n", int(expiry.Minutes()), link)

	if m.host == "" {
		log.Printf("[Mailer] SMTP not configured, magic link for %s: %s", to, link)
		return nil
	}

	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from.Address, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	log.Printf("[Mailer] Magic link sent to %s", to)
	return nil
}

func (m *Mailer) buildMessage(to, subject, body string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{m.from})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
