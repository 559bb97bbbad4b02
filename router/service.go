// Package router is the single decision point for where a
// composed email goes: into a local mailbox, out to the
// external SMTP relay, or into the lost mail area.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	smtp "github.com/alexisbouchez/smtp.go"
	"github.com/glomail/glomail/relay"
	"github.com/glomail/glomail/store"
	"github.com/glomail/glomail/wire"
)

// Constants

// Disposition names the terminal outcome of one
// routing attempt.
type Disposition int

const (
	// DeliveredLocal means the email was appended to a
	// local recipient's mailbox.
	DeliveredLocal Disposition = iota

	// Relayed means the email was accepted by the
	// external SMTP relay.
	Relayed

	// ArchivedLost means the destination was unroutable
	// and the email was preserved in the lost mail area.
	ArchivedLost
)

// Variables

// ErrUnroutable signals a destination that is neither a
// known local account nor a syntactically valid external
// address. The email is archived, not discarded.
var ErrUnroutable = errors.New("destination is neither a local account nor a valid external address")

// Interfaces

// Service defines the mail routing operation.
type Service interface {

	// Route decides between local delivery, external
	// relay, and the lost mail area, performs the side
	// effect, and reports the outcome. Routing is
	// synchronous and single-attempt.
	Route(ctx context.Context, email *wire.EmailContentPayload) (Disposition, error)
}

// Structs

type service struct {
	mailbox     store.Service
	relay       relay.Client
	localDomain string
}

// Functions

// NewService returns a router delivering into the
// supplied mailbox store and relaying everything else
// through the supplied SMTP client.
func NewService(mailbox store.Service, relay relay.Client, localDomain string) Service {

	return &service{
		mailbox:     mailbox,
		relay:       relay,
		localDomain: localDomain,
	}
}

// Route decides where the supplied email goes and
// performs the delivery.
func (s *service) Route(ctx context.Context, email *wire.EmailContentPayload) (Disposition, error) {

	// A bare name or an address within the local domain
	// may name a local account.
	local, isLocalForm := s.localName(email.Destination)

	if isLocalForm && s.mailbox.HasAccount(local) {

		if err := s.mailbox.AppendEmail(local, email); err != nil {
			return DeliveredLocal, fmt.Errorf("failed to deliver email to local account '%s': %v", local, err)
		}

		return DeliveredLocal, nil
	}

	// Addresses of the local domain that resolve to no
	// account are unroutable, never relayed back out.
	if !isLocalForm {

		if _, err := smtp.ParseMailbox(email.Destination); err == nil {

			if err := s.relay.Send(ctx, email.Sender, email.Destination, email.Subject, email.Date, email.Content); err != nil {
				return Relayed, err
			}

			return Relayed, nil
		}
	}

	if err := s.mailbox.ArchiveLost(email); err != nil {
		return ArchivedLost, fmt.Errorf("failed to archive unroutable email: %v", err)
	}

	return ArchivedLost, ErrUnroutable
}

// localName extracts the local account candidate from a
// destination. A destination without '@' is itself the
// candidate; one ending in the local domain yields its
// local part; everything else is not a local form.
func (s *service) localName(destination string) (string, bool) {

	if !strings.Contains(destination, "@") {
		return strings.ToLower(destination), true
	}

	suffix := "@" + s.localDomain

	if strings.HasSuffix(strings.ToLower(destination), strings.ToLower(suffix)) {
		return strings.ToLower(destination[:len(destination)-len(suffix)]), true
	}

	return "", false
}
