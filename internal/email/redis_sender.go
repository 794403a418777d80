package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
)

const mockEmailTTL = 5 * time.Minute

// MockEmailKey is where RedisSender stores the last mail of an event for a recipient.
func MockEmailKey(address, event string) string {
	return fmt.Sprintf("mockemail:%s:%s", address, event)
}

// RedisSender stores emails in Redis instead of sending them, so end-to-end
// tests can read them back through the service API.
type RedisSender struct {
	client redis.Cmdable
	cfg    *config.Config
}

func NewRedisSender(client redis.Cmdable, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// Send stores one copy per recipient under MockEmailKey.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	event := EventOf(rawMessage)
	emailData := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"event":   event,
	}
	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, addr := range to {
			pipe.Set(ctx, MockEmailKey(addr, event), jsonData, mockEmailTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store mock email for %v: %w", to, err)
	}

	logging.GetLogger().WithFields(logrus.Fields{"to": to, "event": event, "ttl": mockEmailTTL}).Info("mock email stored in Redis")
	return nil
}
