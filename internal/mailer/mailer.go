// Package mailer sends guardian notification emails. It is a thin SMTP
// wrapper; delivery is best-effort and never part of a request path.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends plain-text mail over SMTP.
type Mailer struct {
	addr string
	from string
	auth smtp.Auth
}

// New creates a mailer. addr is host:port; user/pass may be empty for
// unauthenticated relays. A nil Mailer is returned when addr is empty so
// callers can treat notifications as disabled.
func New(addr, from, user, pass string) *Mailer {
	if addr == "" {
		return nil
	}
	var auth smtp.Auth
	if user != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &Mailer{addr: addr, from: from, auth: auth}
}

// Send delivers one message.
func (m *Mailer) Send(to, subject, body string) error {
	if m == nil {
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg))
}
