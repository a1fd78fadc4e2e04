// Package framing implements the length-prefixed, AES-GCM-encrypted record
// stream (C3) used by the session server for every byte exchanged after the
// handshake: a 4-byte big-endian length prefix, then nonce‖ciphertext‖tag.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dcnnt/dcnntd/internal/cryptox"
)

// DefaultMaxRecordBytes is the default cap on decrypted plaintext per
// record (spec §4.3: "1 MiB plaintext payload, implementation-defined but
// finite").
const DefaultMaxRecordBytes = 1 << 20

// DefaultIdleTimeout is the soft watchdog: no progress for this long closes
// the channel.
const DefaultIdleTimeout = 60 * time.Second

// HeaderTimeout is the hard deadline for the initial 60-byte session header
// read, per spec §4.6.
const HeaderTimeout = 10 * time.Second

// ErrClosed is returned by Read when the channel has hit EOF or a broken
// connection; callers treat it as "no more requests", not a hard error.
var ErrClosed = errors.New("framing: channel closed")

// ErrFrameTooLarge is returned when a peer announces a length prefix above
// MaxRecordBytes.
var ErrFrameTooLarge = errors.New("framing: frame exceeds maximum size")

// Channel wraps a connected TCP socket with framed, authenticated
// read/write of whole plaintext records. Read path: read 4-byte length,
// validate against MaxRecordBytes, read exactly that many bytes, then
// cryptox.Open. Write path: cryptox.Seal, prefix with length, single write.
//
// A Channel is not safe for concurrent reads, nor concurrent writes, but a
// single reader and single writer may operate concurrently (matches
// spec §5's strict per-session request/response ordering).
type Channel struct {
	conn           net.Conn
	keyRecv        []byte
	keySend        []byte
	maxRecordBytes int
	idleTimeout    time.Duration
}

// Option configures a Channel at construction time.
type Option func(*Channel)

// WithMaxRecordBytes overrides DefaultMaxRecordBytes.
func WithMaxRecordBytes(n int) Option {
	return func(c *Channel) { c.maxRecordBytes = n }
}

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Channel) { c.idleTimeout = d }
}

// New wraps conn with the given per-direction keys.
func New(conn net.Conn, keyRecv, keySend []byte, opts ...Option) *Channel {
	c := &Channel{
		conn:           conn,
		keyRecv:        keyRecv,
		keySend:        keySend,
		maxRecordBytes: DefaultMaxRecordBytes,
		idleTimeout:    DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conn returns the underlying net.Conn, for header-phase raw reads and
// deadline management before a Channel takes over.
func (c *Channel) Conn() net.Conn {
	return c.conn
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// Read blocks for exactly one framed record, decrypts it, and returns the
// plaintext. A zero-length slice (non-nil) is a valid result: the in-band
// control sentinel described in spec §4.3/§4.8. ErrClosed is returned on
// EOF, short read, timeout, or decryption failure; no retry is attempted at
// this layer.
func (c *Channel) Read() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
		return nil, fmt.Errorf("framing: set read deadline: %w", err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
		return nil, ErrClosed
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if int(length) > c.maxRecordBytes+cryptox.NonceSize+cryptox.TagSize {
		return nil, ErrFrameTooLarge
	}
	if length < cryptox.NonceSize+cryptox.TagSize {
		// Can't be a valid sealed record at all (not even an empty-plaintext one).
		return nil, ErrClosed
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, ErrClosed
	}

	plaintext, err := cryptox.Open(buf, c.keyRecv)
	if err != nil {
		return nil, ErrClosed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// Write seals plaintext under the send key and writes the length-prefixed
// record in a single call.
func (c *Channel) Write(plaintext []byte) error {
	sealed, err := cryptox.Seal(plaintext, c.keySend)
	if err != nil {
		return fmt.Errorf("framing: seal: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sealed)))

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.idleTimeout)); err != nil {
		return fmt.Errorf("framing: set write deadline: %w", err)
	}

	out := make([]byte, 0, len(lenBuf)+len(sealed))
	out = append(out, lenBuf[:]...)
	out = append(out, sealed...)

	if _, err := c.conn.Write(out); err != nil {
		return fmt.Errorf("framing: write: %w", err)
	}
	return nil
}
