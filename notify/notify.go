// Package notify delivers operator notifications. Delivery is best effort:
// callers go through Safe, which logs failures and never returns them.
package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/evdnx/voltrail/logger"
)

// Notifier sends one message.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// Safe wraps a Notifier so that failures are logged and swallowed.
type Safe struct {
	Next Notifier
	Log  logger.Logger
}

func NewSafe(next Notifier, log logger.Logger) *Safe {
	if next == nil {
		next = Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Safe{Next: next, Log: log}
}

func (s *Safe) Notify(ctx context.Context, subject, body string) error {
	if err := s.Next.Notify(ctx, subject, body); err != nil {
		s.Log.Warn("notification_failed", logger.String("subject", subject), logger.Err(err))
	}
	return nil
}

// SMTP sends plain-text mail through an authenticated relay. smtp.SendMail
// upgrades to STARTTLS when the server offers it.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP builds a notifier. to may hold several comma separated addresses.
func NewSMTP(host string, port int, username, password, from, to string) *SMTP {
	var rcpt []string
	for _, a := range strings.Split(to, ",") {
		if a = strings.TrimSpace(a); a != "" {
			rcpt = append(rcpt, a)
		}
	}
	return &SMTP{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		To:       rcpt,
		send:     smtp.SendMail,
	}
}

func (s *SMTP) Notify(ctx context.Context, subject, body string) error {
	if len(s.To) == 0 {
		return fmt.Errorf("smtp: no recipients")
	}
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	msg := s.message(subject, body, time.Now())

	// SendMail has no context; the result is abandoned on cancellation.
	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, s.From, s.To, msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTP) message(subject, body string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
