package mail

import (
	"context"
	"log/slog"
	"sync"
)

// SentMessage is one email captured by the mock gateway.
type SentMessage struct {
	To      []string
	Subject string
	HTML    string
}

// MockGateway logs mail instead of sending it and records each message. It
// backs local development and tests.
type MockGateway struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []SentMessage
}

func NewMockGateway(logger *slog.Logger) *MockGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockGateway{logger: logger}
}

func (m *MockGateway) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	_ = ctx
	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{
		To:      append([]string(nil), to...),
		Subject: subject,
		HTML:    htmlBody,
	})
	m.mu.Unlock()

	m.logger.Info("MOCK EMAIL",
		"to", to,
		"subject", subject,
		"body_length", len(htmlBody))
	return nil
}

// Sent returns a copy of every message sent so far.
func (m *MockGateway) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
