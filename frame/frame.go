// Package frame implements the length-prefixed message
// framing glomail clients and servers exchange. Every
// frame is one self-delimited unit of bytes corresponding
// to exactly one JSON message: a single call to Send on
// one end surfaces as a single slice returned by Receive
// on the other end, never a partial or merged read.
package frame

import (
	"errors"
	"fmt"
	"io"
	"net"

	"encoding/binary"
)

// Constants

// MaxFrameSize is the upper bound on the byte length of
// a single frame payload. Frames announcing more than
// this are treated as a framing failure.
const MaxFrameSize = 4 * 1024 * 1024

// headerSize is the byte length of the big-endian
// length prefix preceding every payload.
const headerSize = 4

// Variables

// ErrPeerClosed signals that the remote side closed the
// connection, either between frames or in the middle of
// one. Callers use it to distinguish an ordinary client
// disconnect from a genuine transport fault.
var ErrPeerClosed = errors.New("peer closed the connection")

// ErrFrameTooLarge signals a length prefix announcing a
// payload beyond MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum allowed size")

// Functions

// Send writes payload to conn as one discrete frame. The
// length prefix and the payload go out in a single write
// so that one call to Send equals one message on the wire.
func Send(conn net.Conn, payload []byte) error {

	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	// Assemble prefix and payload into one buffer.
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(payload)))
	copy(buf[headerSize:], payload)

	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame of %d bytes: %v", len(payload), err)
	}

	return nil
}

// Receive blocks until one complete frame arrived on conn
// and returns its payload. A connection closed cleanly
// between frames as well as one torn down in the middle
// of a frame both surface as ErrPeerClosed.
func Receive(conn net.Conn) ([]byte, error) {

	// Read the fixed-size length prefix.
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {

		if isClosedErr(err) {
			return nil, ErrPeerClosed
		}

		return nil, fmt.Errorf("failed to read frame header: %v", err)
	}

	size := binary.BigEndian.Uint32(header)
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	// Read exactly the announced number of payload bytes.
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {

		if isClosedErr(err) {
			return nil, ErrPeerClosed
		}

		return nil, fmt.Errorf("failed to read frame payload of %d bytes: %v", size, err)
	}

	return payload, nil
}

// isClosedErr reports whether err indicates that the
// peer went away rather than a protocol-level problem.
func isClosedErr(err error) bool {

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return errors.Is(err, net.ErrClosed)
}
