package testutils

import (
	"context"
	"sync"
)

// Message is one recorded notification.
type Message struct {
	Subject string
	Body    string
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu   sync.Mutex
	msgs []Message
}

func NewMockNotifier() *MockNotifier { return &MockNotifier{} }

func (n *MockNotifier) Notify(_ context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, Message{Subject: subject, Body: body})
	return nil
}

// Messages returns a copy of everything sent so far.
func (n *MockNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.msgs...)
}

// Subjects lists the subjects in send order.
func (n *MockNotifier) Subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Subject
	}
	return out
}
