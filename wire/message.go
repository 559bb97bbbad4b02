// Package wire defines the message vocabulary spoken on
// top of the frame layer: one JSON object per frame with
// a header naming the operation and an optional payload.
package wire

import (
	"fmt"

	"encoding/json"
)

// Constants

// Headers a client may send to the server.
const (
	HeaderAuthRegister        = "AUTH_REGISTER"
	HeaderAuthLogin           = "AUTH_LOGIN"
	HeaderAuthLogout          = "AUTH_LOGOUT"
	HeaderBye                 = "BYE"
	HeaderInboxReadingRequest = "INBOX_READING_REQUEST"
	HeaderInboxReadingChoice  = "INBOX_READING_CHOICE"
	HeaderEmailSending        = "EMAIL_SENDING"
	HeaderStatsRequest        = "STATS_REQUEST"
)

// Headers the server answers with.
const (
	HeaderOK    = "OK"
	HeaderError = "ERROR"
)

// Display templates used to render server responses for
// a line-oriented terminal client.
const (
	SubjectDisplay = "%d. From: %s, Subject: %s, Date: %s"

	EmailDisplay = "From: %s\nTo: %s\nSubject: %s\nDate: %s\n\n%s"

	StatsDisplay = "Number of emails: %d\nFolder size: %d bytes"
)

// Structs

// Message is the unit of exchange between client and
// server. The payload field carries the operation-specific
// object and stays empty for plain acknowledgements.
type Message struct {
	Header  string          `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload carries the credentials for the
// AUTH_REGISTER and AUTH_LOGIN operations.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// EmailChoicePayload carries the 1-based display index
// of the email a client wants to read.
type EmailChoicePayload struct {
	Choice int `json:"choice"`
}

// EmailContentPayload is one complete email, both on the
// wire during EMAIL_SENDING and at rest in a mailbox.
type EmailContentPayload struct {
	Sender      string `json:"sender"`
	Destination string `json:"destination"`
	Subject     string `json:"subject"`
	Date        string `json:"date"`
	Content     string `json:"content"`
}

// EmailListPayload answers INBOX_READING_REQUEST with
// ready-to-print summary lines, newest first.
type EmailListPayload struct {
	List []string `json:"list"`
}

// StatsPayload answers STATS_REQUEST.
type StatsPayload struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// ErrorPayload carries a human-readable reason along
// with an ERROR response.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// Functions

// NewMessage builds a message with the supplied header
// and marshals payload into it. A nil payload produces
// a message carrying the header alone.
func NewMessage(header string, payload interface{}) (Message, error) {

	msg := Message{Header: header}

	if payload == nil {
		return msg, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal payload for header %s: %v", header, err)
	}

	msg.Payload = raw

	return msg, nil
}

// DecodePayload unmarshals the message's payload into v.
func (m *Message) DecodePayload(v interface{}) error {

	if len(m.Payload) == 0 {
		return fmt.Errorf("message with header %s carries no payload", m.Header)
	}

	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload of header %s: %v", m.Header, err)
	}

	return nil
}

// FormatSummary renders one inbox line for the supplied
// display index and email envelope values.
func FormatSummary(index int, sender string, subject string, date string) string {
	return fmt.Sprintf(SubjectDisplay, index, sender, subject, date)
}

// FormatEmail renders one complete email for display.
func (e *EmailContentPayload) FormatEmail() string {
	return fmt.Sprintf(EmailDisplay, e.Sender, e.Destination, e.Subject, e.Date, e.Content)
}

// FormatStats renders mailbox statistics for display.
func (s *StatsPayload) FormatStats() string {
	return fmt.Sprintf(StatsDisplay, s.Count, s.Size)
}
