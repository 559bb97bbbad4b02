package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/glomail/glomail/frame"
	"github.com/glomail/glomail/router"
	"github.com/glomail/glomail/session"
	"github.com/glomail/glomail/store"
	"github.com/glomail/glomail/wire"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Structs

type service struct {
	logger   log.Logger
	sessions session.Service
	mailbox  store.Service
	router   router.Service

	lock     sync.Mutex
	listener net.Listener
	conns    map[string]*Connection
	down     bool
}

// Interfaces

// Service defines the interface the public mail endpoint
// of a glomail setup provides.
type Service interface {

	// Run loops over incoming connections at the public
	// endpoint and dispatches each one to a goroutine
	// reading framed messages off it.
	Run(listener net.Listener) error

	// Register handles the AUTH_REGISTER message.
	Register(c *Connection, msg *wire.Message) bool

	// Login handles the AUTH_LOGIN message.
	Login(c *Connection, msg *wire.Message) bool

	// Logout handles the AUTH_LOGOUT message. It clears
	// the session of the connection but keeps the
	// connection itself open.
	Logout(c *Connection, msg *wire.Message) bool

	// Inbox handles the INBOX_READING_REQUEST message
	// by answering with ready-to-print summary lines,
	// newest first.
	Inbox(c *Connection, msg *wire.Message) bool

	// ReadEmail handles the INBOX_READING_CHOICE message
	// by answering with the complete email stored at the
	// chosen display index.
	ReadEmail(c *Connection, msg *wire.Message) bool

	// SendEmail handles the EMAIL_SENDING message by
	// routing the composed email and reporting the
	// delivery outcome.
	SendEmail(c *Connection, msg *wire.Message) bool

	// Stats handles the STATS_REQUEST message.
	Stats(c *Connection, msg *wire.Message) bool
}

// Functions

// NewService takes in all required collaborators for
// spinning up the public mail endpoint and returns a
// service struct wrapping all information.
func NewService(logger log.Logger, sessions session.Service, mailbox store.Service, router router.Service) Service {

	return &service{
		logger:   logger,
		sessions: sessions,
		mailbox:  mailbox,
		router:   router,
		conns:    make(map[string]*Connection),
	}
}

// Run loops over incoming connections and dispatches
// each one into its own goroutine.
func (s *service) Run(listener net.Listener) error {

	s.lock.Lock()
	s.listener = listener
	s.lock.Unlock()

	for {
		// Accept connection or fail on error.
		conn, err := listener.Accept()
		if err != nil {

			// Leave no client connection behind,
			// whether this is a deliberate shutdown
			// or a failure of the listening socket.
			s.closeAll()

			s.lock.Lock()
			down := s.down
			s.lock.Unlock()

			if down {
				return nil
			}

			return fmt.Errorf("accepting incoming connection failed with: %v", err)
		}

		c := NewConnection(conn)

		s.lock.Lock()
		s.conns[c.Token] = c
		s.lock.Unlock()

		// Dispatch into own goroutine.
		go s.handleConnection(c)
	}
}

// handleConnection reads one framed message after another
// off an accepted connection and dispatches each one by
// its header. Transport errors drop this connection only;
// an unexpected error during dispatch takes the whole
// service down after best-effort cleanup.
func (s *service) handleConnection(c *Connection) {

	defer func() {
		if rec := recover(); rec != nil {

			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("unexpected error during dispatch for client %s, shutting down", c.ClientAddr),
				"panic", rec,
			)

			s.shutdown()
		}
	}()

	defer s.dropConnection(c)

	for {

		// Receive next incoming client message.
		msg, err := c.Receive()
		if err != nil {

			// Check if error was a simple disconnect.
			if errors.Is(err, frame.ErrPeerClosed) {
				level.Debug(s.logger).Log("msg", fmt.Sprintf("client at %s disconnected", c.ClientAddr))
			} else {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while receiving message from client %s", c.ClientAddr),
					"err", err,
				)
			}

			return
		}

		ok := true

		switch msg.Header {

		case wire.HeaderAuthRegister:
			ok = s.Register(c, msg)

		case wire.HeaderAuthLogin:
			ok = s.Login(c, msg)

		case wire.HeaderAuthLogout:
			ok = s.Logout(c, msg)

		case wire.HeaderBye:
			// A BYE marks connection termination,
			// no response is sent.
			return

		case wire.HeaderInboxReadingRequest:
			ok = s.Inbox(c, msg)

		case wire.HeaderInboxReadingChoice:
			ok = s.ReadEmail(c, msg)

		case wire.HeaderEmailSending:
			ok = s.SendEmail(c, msg)

		case wire.HeaderStatsRequest:
			ok = s.Stats(c, msg)

		default:
			// Client sent an inappropriate message.
			ok = s.sendError(c, fmt.Sprintf("received invalid header '%s'", msg.Header))
		}

		// Executed operation above indicated failure
		// to answer the client. Drop the connection.
		if !ok {
			return
		}
	}
}

// dropConnection releases everything bound to one
// connection: its session, its bookkeeping entry,
// and the socket itself.
func (s *service) dropConnection(c *Connection) {

	s.sessions.Logout(c.Token)

	s.lock.Lock()
	delete(s.conns, c.Token)
	s.lock.Unlock()

	c.Conn.Close()
}

// closeAll closes every tracked client connection.
func (s *service) closeAll() {

	s.lock.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*Connection)
	s.lock.Unlock()

	for _, c := range conns {
		s.sessions.Logout(c.Token)
		c.Conn.Close()
	}
}

// shutdown closes the listening socket so that the accept
// loop unwinds through its cleanup path.
func (s *service) shutdown() {

	s.lock.Lock()
	s.down = true
	listener := s.listener
	s.lock.Unlock()

	if listener != nil {
		listener.Close()
	}
}

// send writes one response message to the client and
// reports whether the connection is still usable.
func (s *service) send(c *Connection, msg wire.Message) bool {

	if err := c.Send(msg); err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while sending response to client %s", c.ClientAddr),
			"err", err,
		)
		return false
	}

	return true
}

// sendOK answers the client with an OK message wrapping
// the supplied payload.
func (s *service) sendOK(c *Connection, payload interface{}) bool {

	msg, err := wire.NewMessage(wire.HeaderOK, payload)
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while building OK response for client %s", c.ClientAddr),
			"err", err,
		)
		return false
	}

	return s.send(c, msg)
}

// sendError answers the client with an ERROR message
// carrying a human-readable reason.
func (s *service) sendError(c *Connection, reason string) bool {

	msg, err := wire.NewMessage(wire.HeaderError, wire.ErrorPayload{Reason: reason})
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while building ERROR response for client %s", c.ClientAddr),
			"err", err,
		)
		return false
	}

	return s.send(c, msg)
}

// Register handles the AUTH_REGISTER message.
func (s *service) Register(c *Connection, msg *wire.Message) bool {

	payload := new(wire.AuthPayload)
	if err := msg.DecodePayload(payload); err != nil {
		return s.sendError(c, "malformed AUTH_REGISTER payload")
	}

	if err := s.sessions.Register(c.Token, payload.Username, payload.Password); err != nil {
		return s.sendError(c, err.Error())
	}

	return s.sendOK(c, nil)
}

// Login handles the AUTH_LOGIN message.
func (s *service) Login(c *Connection, msg *wire.Message) bool {

	payload := new(wire.AuthPayload)
	if err := msg.DecodePayload(payload); err != nil {
		return s.sendError(c, "malformed AUTH_LOGIN payload")
	}

	if err := s.sessions.Login(c.Token, payload.Username, payload.Password); err != nil {
		return s.sendError(c, err.Error())
	}

	return s.sendOK(c, nil)
}

// Logout handles the AUTH_LOGOUT message. Logging out an
// anonymous connection is a no-op, not an error.
func (s *service) Logout(c *Connection, msg *wire.Message) bool {

	s.sessions.Logout(c.Token)

	return s.sendOK(c, nil)
}

// Inbox handles the INBOX_READING_REQUEST message.
func (s *service) Inbox(c *Connection, msg *wire.Message) bool {

	username, bound := s.sessions.UsernameFor(c.Token)
	if !bound {
		return s.sendError(c, "not logged in")
	}

	summaries, err := s.mailbox.ListEmails(username)
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while listing emails of '%s'", username),
			"err", err,
		)
		return s.sendError(c, "failed to read mailbox")
	}

	list := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		list = append(list, wire.FormatSummary(summary.Index, summary.Sender, summary.Subject, summary.Date))
	}

	return s.sendOK(c, wire.EmailListPayload{List: list})
}

// ReadEmail handles the INBOX_READING_CHOICE message.
func (s *service) ReadEmail(c *Connection, msg *wire.Message) bool {

	username, bound := s.sessions.UsernameFor(c.Token)
	if !bound {
		return s.sendError(c, "not logged in")
	}

	payload := new(wire.EmailChoicePayload)
	if err := msg.DecodePayload(payload); err != nil {
		return s.sendError(c, "malformed INBOX_READING_CHOICE payload")
	}

	email, err := s.mailbox.GetEmail(username, payload.Choice)
	if err != nil {

		if errors.Is(err, store.ErrNotFound) {
			return s.sendError(c, err.Error())
		}

		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while reading email %d of '%s'", payload.Choice, username),
			"err", err,
		)
		return s.sendError(c, "failed to read email")
	}

	return s.sendOK(c, email)
}

// SendEmail handles the EMAIL_SENDING message.
func (s *service) SendEmail(c *Connection, msg *wire.Message) bool {

	if _, bound := s.sessions.UsernameFor(c.Token); !bound {
		return s.sendError(c, "not logged in")
	}

	email := new(wire.EmailContentPayload)
	if err := msg.DecodePayload(email); err != nil {
		return s.sendError(c, "malformed EMAIL_SENDING payload")
	}

	if _, err := s.router.Route(context.Background(), email); err != nil {
		return s.sendError(c, err.Error())
	}

	return s.sendOK(c, nil)
}

// Stats handles the STATS_REQUEST message. The acting
// identity is resolved strictly through the session
// registry, never derived from the raw connection.
func (s *service) Stats(c *Connection, msg *wire.Message) bool {

	username, bound := s.sessions.UsernameFor(c.Token)
	if !bound {
		return s.sendError(c, "not logged in")
	}

	stats, err := s.mailbox.Stats(username)
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while computing stats of '%s'", username),
			"err", err,
		)
		return s.sendError(c, "failed to compute stats")
	}

	return s.sendOK(c, stats)
}
