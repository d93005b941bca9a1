package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdnx/voltrail/testutils"
)

type failing struct{ calls int }

func (f *failing) Notify(context.Context, string, string) error {
	f.calls++
	return errors.New("relay down")
}

func TestSafeSwallowsFailures(t *testing.T) {
	next := &failing{}
	log := testutils.NewMockLogger()
	s := NewSafe(next, log)

	require.NoError(t, s.Notify(context.Background(), "Buy executed", "body"))
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "notification_failed", log.LastMessage())
}

func TestSMTPBuildsMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	s := NewSMTP("smtp.example.com", 587, "bot", "secret", "bot@example.com", "a@example.com, b@example.com")
	s.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, s.Notify(context.Background(), "Sell executed", "line one\nline two"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Sell executed\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "line one\r\nline two"))
}

func TestSMTPRequiresRecipients(t *testing.T) {
	s := NewSMTP("smtp.example.com", 587, "", "", "bot@example.com", " ")
	assert.Error(t, s.Notify(context.Background(), "x", "y"))
}

func TestSMTPHonoursCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := NewSMTP("smtp.example.com", 587, "", "", "bot@example.com", "a@example.com")
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-block
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Notify(ctx, "x", "y"), context.Canceled)
}
