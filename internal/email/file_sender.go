package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/logging"
)

// FileEmailSender appends every email to a local file.
type FileEmailSender struct {
	filePath string
	mu       sync.Mutex
}

// NewFileEmailSender creates the directory of filePath if needed.
func NewFileEmailSender(filePath string) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}
	return &FileEmailSender{filePath: filePath}, nil
}

func (s *FileEmailSender) Send(_ context.Context, to []string, subject string, rawMessage []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	entry := fmt.Sprintf("--- Email Logged at %s (To: %v, Subject: %s) ---\n", time.Now().Format(time.RFC3339Nano), to, subject)
	entry += string(rawMessage)
	entry += "--- End Logged Email ---\n\n"
	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}

	logging.GetLogger().WithFields(logrus.Fields{"to": to, "file": s.filePath}).Debug("email written to file")
	return nil
}
