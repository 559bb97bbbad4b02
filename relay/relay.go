// Package relay hands finished emails to an external SMTP
// server. One call is one synchronous delivery attempt
// with a bounded connection timeout, no queuing and no
// automatic retry.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexisbouchez/smtp.go/smtpclient"
)

// Interfaces

// Client defines the single operation the mail router
// needs from an SMTP relay.
type Client interface {

	// Send relays one email to the external SMTP server
	// and reports failure with a human-readable reason.
	Send(ctx context.Context, from string, to string, subject string, date string, body string) error
}

// Structs

type client struct {
	addr      string
	localName string
	timeout   time.Duration
}

// Functions

// NewClient returns a relay client speaking to the SMTP
// server at addr, identifying itself as localName and
// bounding every delivery attempt by timeout.
func NewClient(addr string, localName string, timeout time.Duration) Client {

	return &client{
		addr:      addr,
		localName: localName,
		timeout:   timeout,
	}
}

// Send relays one email to the configured SMTP server.
func (c *client) Send(ctx context.Context, from string, to string, subject string, date string, body string) error {

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := smtpclient.Dial(ctx, c.addr,
		smtpclient.WithTimeout(c.timeout),
		smtpclient.WithLocalName(c.localName),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to relay %s: %v", c.addr, err)
	}
	defer conn.Close()

	msg := formatMessage(from, to, subject, date, body)

	if err := conn.SendMail(ctx, from, []string{to}, strings.NewReader(msg)); err != nil {
		return fmt.Errorf("relay %s rejected the email: %v", c.addr, err)
	}

	return nil
}

// formatMessage assembles the standard message handed to
// the relay: From, To, Subject and Date headers followed
// by an empty line and the body, with CRLF line endings.
func formatMessage(from string, to string, subject string, date string, body string) string {

	var b strings.Builder

	fmt.Fprintf(&b, "From: <%s>\r\n", from)
	fmt.Fprintf(&b, "To: <%s>\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date)
	b.WriteString("\r\n")

	for _, line := range strings.Split(body, "\n") {
		b.WriteString(strings.TrimRight(line, "\r"))
		b.WriteString("\r\n")
	}

	return b.String()
}
