// Package mail delivers account e-mails.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/logger"
)

// Message is a single outbound e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates an SMTP mailer
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

// Send delivers msg. The context is only checked before dialing; net/smtp
// has no cancellation.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.sendMail(addr, auth, m.cfg.From, []string{msg.To}, buildMIME(m.cfg.From, msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", logger.SanitizeEmail(msg.To), err)
	}
	return nil
}

func buildMIME(from string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mimeHeader(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

func mimeHeader(s string) string {
	for _, r := range s {
		if r > 127 {
			return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
		}
	}
	return strings.ReplaceAll(s, "\r\n", " ")
}

// LogMailer writes messages to the log instead of sending them. It is used
// when SMTP is not configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a log-only mailer
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email_not_sent_smtp_disabled",
		zap.String("to", logger.SanitizeEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// VerificationSubject is the subject line of account verification e-mails.
const VerificationSubject = "Verify your Verveo account"

var verificationTemplate = template.Must(template.New("verify").Parse(
	`<h2>Welcome to Verveo!</h2>
<p>Please click the link below to verify your account:</p>
<a href="{{.URL}}">Verify Account</a>
`))

// VerificationURL builds the link a user follows to verify their address.
func VerificationURL(appURL, token string) string {
	return strings.TrimRight(appURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
}

// VerificationMessage renders the verification e-mail for to.
func VerificationMessage(appURL, to, token string) (Message, error) {
	var body bytes.Buffer
	if err := verificationTemplate.Execute(&body, struct{ URL string }{VerificationURL(appURL, token)}); err != nil {
		return Message{}, fmt.Errorf("failed to render verification email: %w", err)
	}
	return Message{To: to, Subject: VerificationSubject, HTML: body.String()}, nil
}
