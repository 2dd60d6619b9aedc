package notify

import (
	"context"
	"log/slog"
	"sync"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

func (LogSender) SendMessage(ctx context.Context, to string, body string) error {
	slog.Info("LogSender.SendMessage", "to", to, "body", body)
	return nil
}

// SentMessage is a message captured by MockSender.
type SentMessage struct {
	To   string
	Body string
}

// MockSender records messages for tests. Err, when set, is returned from every send.
type MockSender struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
