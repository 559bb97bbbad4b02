package server

import (
	"fmt"
	"net"
	"time"

	"encoding/json"

	"github.com/glomail/glomail/frame"
	"github.com/glomail/glomail/wire"
	uuid "github.com/satori/go.uuid"
)

// Constants

// sendTimeout bounds every response write so that one
// unresponsive peer cannot stall its handler forever.
const sendTimeout = 10 * time.Second

// Structs

// Connection carries all information specific to one
// accepted client connection on its way through the
// server. The token identifies the connection inside
// the session registry.
type Connection struct {
	Conn       net.Conn
	Token      string
	ClientAddr string
}

// Functions

// NewConnection creates a new element of above connection
// struct and fills it with content from a supplied, real
// client connection.
func NewConnection(c net.Conn) *Connection {

	return &Connection{
		Conn:       c,
		Token:      uuid.NewV4().String(),
		ClientAddr: c.RemoteAddr().String(),
	}
}

// Send marshals a response message and writes it to the
// connection as one discrete frame.
func (c *Connection) Send(msg wire.Message) error {

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal response with header %s: %v", msg.Header, err)
	}

	if err := c.Conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %v", err)
	}

	return frame.Send(c.Conn, raw)
}

// Receive blocks until one complete framed message
// arrived from the client and returns the parsed result.
func (c *Connection) Receive() (*wire.Message, error) {

	raw, err := frame.Receive(c.Conn)
	if err != nil {
		return nil, err
	}

	msg := new(wire.Message)
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message from client %s: %v", c.ClientAddr, err)
	}

	return msg, nil
}
