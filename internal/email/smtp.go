package email

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// Sender entrega un magic link por correo. La composición del cuerpo es
// mínima a propósito: el rendering rico de templates vive fuera del core.
type Sender interface {
	SendMagicLink(to, subject, linkURL string) error
}

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

func (s *SMTPSender) SendMagicLink(to, subject, linkURL string) error {
	log := logger.Named("email").With(
		zap.String("host", s.Host),
		zap.String("to", to),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", fmt.Sprintf("Use this link to continue:\n\n%s\n\nThe link works only once and expires.", linkURL))
	m.AddAlternative("text/html", fmt.Sprintf(
		`<p>Use this link to continue:</p><p><a href=%q>%s</a></p><p>The link works only once and expires.</p>`,
		linkURL, linkURL,
	))

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", zap.Error(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Info("magic link delivered")
	return nil
}
