package utils

import (
	"context"
	"fmt"
	"net"
	"sync"

	"encoding/json"
	"path/filepath"

	"github.com/glomail/glomail/frame"
	"github.com/glomail/glomail/relay"
	"github.com/glomail/glomail/router"
	"github.com/glomail/glomail/server"
	"github.com/glomail/glomail/session"
	"github.com/glomail/glomail/store"
	"github.com/glomail/glomail/wire"
	"github.com/go-kit/kit/log"
)

// Constants

// TestLocalDomain is the local domain a test
// environment answers for.
const TestLocalDomain = "glo2000.ca"

// Structs

// TestEnv carries everything needed for a full grown
// test of glomail with a running endpoint on a random
// port and a fresh storage area.
type TestEnv struct {
	Addr         string
	DataRoot     string
	LostMailRoot string
	Mailbox      store.Service
	Sessions     session.Service
	Router       router.Service
	Relay        *RecordingRelay
	Listener     net.Listener
	Done         chan struct{}
}

// RecordingRelay implements the relay client in memory
// so tests can observe and fail relay attempts.
type RecordingRelay struct {
	lock sync.Mutex
	Err  error
	Sent []RelayedEmail
}

var _ relay.Client = (*RecordingRelay)(nil)

// RelayedEmail is one delivery attempt a RecordingRelay
// observed.
type RelayedEmail struct {
	From    string
	To      string
	Subject string
	Date    string
	Body    string
}

// Client is a minimal framed-message client used to
// exercise a running test environment end to end.
type Client struct {
	conn net.Conn
}

// Functions

// Send records one delivery attempt and answers with the
// configured error.
func (r *RecordingRelay) Send(ctx context.Context, from string, to string, subject string, date string, body string) error {

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.Err != nil {
		return r.Err
	}

	r.Sent = append(r.Sent, RelayedEmail{
		From:    from,
		To:      to,
		Subject: subject,
		Date:    date,
		Body:    body,
	})

	return nil
}

// Delivered returns a snapshot of all recorded
// delivery attempts.
func (r *RecordingRelay) Delivered() []RelayedEmail {

	r.lock.Lock()
	defer r.lock.Unlock()

	out := make([]RelayedEmail, len(r.Sent))
	copy(out, r.Sent)

	return out
}

// CreateTestEnv initializes the needed environment for
// performing various tests against a complete glomail
// setup rooted below baseDir. The returned environment
// already accepts connections on Addr.
func CreateTestEnv(baseDir string) (*TestEnv, error) {

	dataRoot := filepath.Join(baseDir, "data")
	lostRoot := filepath.Join(dataRoot, "lost+found")

	mailbox, err := store.NewService(dataRoot, lostRoot)
	if err != nil {
		return nil, err
	}

	sessions := session.NewRegistry(mailbox)

	recRelay := &RecordingRelay{}

	mailRouter := router.NewService(mailbox, recRelay, TestLocalDomain)

	endpoint := server.NewService(log.NewNopLogger(), sessions, mailbox, mailRouter)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open test listener: %v", err)
	}

	env := &TestEnv{
		Addr:         listener.Addr().String(),
		DataRoot:     dataRoot,
		LostMailRoot: lostRoot,
		Mailbox:      mailbox,
		Sessions:     sessions,
		Router:       mailRouter,
		Relay:        recRelay,
		Listener:     listener,
		Done:         make(chan struct{}),
	}

	go func() {
		endpoint.Run(listener)
		close(env.Done)
	}()

	return env, nil
}

// TearDown closes the test environment's listening socket
// and waits for the accept loop to unwind.
func (env *TestEnv) TearDown() {
	env.Listener.Close()
	<-env.Done
}

// Dial connects a test client to the supplied address.
func Dial(addr string) (*Client, error) {

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial test server at %s: %v", addr, err)
	}

	return &Client{conn: conn}, nil
}

// Send frames and writes one message without awaiting
// a response, as a real client does for BYE.
func (c *Client) Send(header string, payload interface{}) error {

	msg, err := wire.NewMessage(header, payload)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return frame.Send(c.conn, raw)
}

// Receive blocks until one framed response arrived.
func (c *Client) Receive() (*wire.Message, error) {

	raw, err := frame.Receive(c.conn)
	if err != nil {
		return nil, err
	}

	msg := new(wire.Message)
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// Exchange sends one request and awaits its response.
func (c *Client) Exchange(header string, payload interface{}) (*wire.Message, error) {

	if err := c.Send(header, payload); err != nil {
		return nil, err
	}

	return c.Receive()
}

// Close tears down the client's connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
