package router_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"path/filepath"

	"github.com/glomail/glomail/router"
	"github.com/glomail/glomail/store"
	"github.com/glomail/glomail/utils"
	"github.com/glomail/glomail/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Structs

type routerEnv struct {
	router   router.Service
	mailbox  store.Service
	relay    *utils.RecordingRelay
	lostRoot string
}

// Functions

// newRouterEnv wires a router on top of a temporary store
// and a recording relay.
func newRouterEnv(t *testing.T) *routerEnv {

	t.Helper()

	base := t.TempDir()
	lostRoot := filepath.Join(base, "lost+found")

	mailbox, err := store.NewService(filepath.Join(base, "data"), lostRoot)
	require.NoError(t, err)

	recRelay := &utils.RecordingRelay{}

	return &routerEnv{
		router:   router.NewService(mailbox, recRelay, utils.TestLocalDomain),
		mailbox:  mailbox,
		relay:    recRelay,
		lostRoot: lostRoot,
	}
}

// email builds one email addressed to the supplied
// destination.
func email(destination string) *wire.EmailContentPayload {

	return &wire.EmailContentPayload{
		Sender:      "alice@glo2000.ca",
		Destination: destination,
		Subject:     "hi",
		Date:        "Mon, 06 May 2024 14:00:00 UTC",
		Content:     "hello\n",
	}
}

// lostCount counts the files preserved in the lost
// mail area.
func (env *routerEnv) lostCount(t *testing.T) int {

	t.Helper()

	entries, err := os.ReadDir(env.lostRoot)
	require.NoError(t, err)

	return len(entries)
}

// TestRouteLocal checks that mail to a known account
// lands in that account's mailbox.
func TestRouteLocal(t *testing.T) {

	env := newRouterEnv(t)

	require.NoError(t, env.mailbox.CreateAccount("bob", "digest"))

	disposition, err := env.router.Route(context.Background(), email("bob"))
	assert.NoError(t, err)
	assert.Equal(t, router.DeliveredLocal, disposition)

	summaries, err := env.mailbox.ListEmails("bob")
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	// Nothing went out and nothing got archived.
	assert.Empty(t, env.relay.Delivered())
	assert.Equal(t, 0, env.lostCount(t))
}

// TestRouteLocalDomainAddress checks that an address of
// the local domain resolves to the local account.
func TestRouteLocalDomainAddress(t *testing.T) {

	env := newRouterEnv(t)

	require.NoError(t, env.mailbox.CreateAccount("bob", "digest"))

	disposition, err := env.router.Route(context.Background(), email("Bob@GLO2000.ca"))
	assert.NoError(t, err)
	assert.Equal(t, router.DeliveredLocal, disposition)

	summaries, err := env.mailbox.ListEmails("bob")
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

// TestRouteExternal checks that mail to a valid external
// address is handed to the relay exactly once.
func TestRouteExternal(t *testing.T) {

	env := newRouterEnv(t)

	disposition, err := env.router.Route(context.Background(), email("eve@example.com"))
	assert.NoError(t, err)
	assert.Equal(t, router.Relayed, disposition)

	delivered := env.relay.Delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, "eve@example.com", delivered[0].To)
	assert.Equal(t, "alice@glo2000.ca", delivered[0].From)
	assert.Equal(t, "hi", delivered[0].Subject)
}

// TestRouteRelayFailure checks that a relay failure is
// reported to the caller and the email is not archived.
func TestRouteRelayFailure(t *testing.T) {

	env := newRouterEnv(t)
	env.relay.Err = errors.New("connection timed out")

	disposition, err := env.router.Route(context.Background(), email("eve@example.com"))
	assert.Error(t, err)
	assert.Equal(t, router.Relayed, disposition)

	// A failed relay attempt is not lost mail.
	assert.Equal(t, 0, env.lostCount(t))
}

// TestRouteUnroutable checks that mail to a destination
// that is neither a local account nor a valid external
// address is archived rather than discarded.
func TestRouteUnroutable(t *testing.T) {

	env := newRouterEnv(t)

	disposition, err := env.router.Route(context.Background(), email("nosuchuser"))
	assert.ErrorIs(t, err, router.ErrUnroutable)
	assert.Equal(t, router.ArchivedLost, disposition)

	assert.Equal(t, 1, env.lostCount(t))
	assert.Empty(t, env.relay.Delivered())
}

// TestRouteUnknownLocalDomainAddress checks that an
// unknown recipient within the local domain is never
// relayed back out.
func TestRouteUnknownLocalDomainAddress(t *testing.T) {

	env := newRouterEnv(t)

	disposition, err := env.router.Route(context.Background(), email("ghost@glo2000.ca"))
	assert.ErrorIs(t, err, router.ErrUnroutable)
	assert.Equal(t, router.ArchivedLost, disposition)

	assert.Equal(t, 1, env.lostCount(t))
	assert.Empty(t, env.relay.Delivered())
}
