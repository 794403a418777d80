package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
)

// Sender defines the interface for sending emails.
// rawMessage is the full message, headers included; see Compose.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender implements the Sender interface using Go's net/smtp package.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
	log  *logrus.Logger
}

// NewSMTPSender returns a LoggingSender when no SMTP host is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	log := logging.GetLogger()
	if cfg.SmtpHost == "" {
		log.Info("SMTP host not configured, using logging email sender")
		return &LoggingSender{cfg: cfg, log: log}
	}

	auth := smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		log:  log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, to, rawMessage); err != nil {
		logging.LogError(s.log, "email", "SMTPSender.Send", "smtp delivery failed", logrus.Fields{"to": to}, err)
		return fmt.Errorf("smtp error: %w", err)
	}
	s.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email sent via SMTP")
	return nil
}

// LoggingSender writes emails to the application log instead of sending them.
type LoggingSender struct {
	cfg *config.Config
	log *logrus.Logger
}

func (s *LoggingSender) Send(_ context.Context, to []string, subject string, rawMessage []byte) error {
	s.log.WithFields(logrus.Fields{
		"to":      to,
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"event":   EventOf(rawMessage),
	}).Info("email logged")
	s.log.Debug(string(rawMessage))
	return nil
}
