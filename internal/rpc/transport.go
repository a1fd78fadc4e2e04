package rpc

import (
	"fmt"
)

// RawChannel is the subset of framing.Channel that the RPC transport needs:
// one framed record in, one framed record out.
type RawChannel interface {
	Read() ([]byte, error)
	Write(plaintext []byte) error
}

// Transport wraps a RawChannel with JSON-RPC encode/decode, mirroring the
// source's rpc_read/rpc_send pair (see original_source/dcnnt/plugins/base.py).
type Transport struct {
	channel RawChannel
}

// NewTransport wraps channel for JSON-RPC traffic.
func NewTransport(channel RawChannel) *Transport {
	return &Transport{channel: channel}
}

// ReadRequest reads one framed record and decodes it as a JSON-RPC request.
// At end-of-stream the framing layer's error (its closed sentinel) is
// returned as the third value, and the dispatcher ends the loop on it, the
// "req is None: return" outer loop condition from spec §4.7. On a decode
// error the partially-decoded
// request is still returned alongside the *Error, so a recovered id can be
// addressed in the reply (spec §4.4).
func (t *Transport) ReadRequest() (*Request, *Error, error) {
	raw, err := t.channel.Read()
	if err != nil {
		return nil, nil, err
	}

	req, decErr := Decode(raw)
	if decErr != nil {
		return req, decErr, nil
	}
	return req, nil, nil
}

// SendResponse encodes and writes resp as one framed record.
func (t *Transport) SendResponse(resp *Response) error {
	data, err := Encode(resp)
	if err != nil {
		return err
	}
	if err := t.channel.Write(data); err != nil {
		return fmt.Errorf("rpc: write response: %w", err)
	}
	return nil
}

// ReadRaw reads one raw framed record without JSON-RPC interpretation, used
// by plugins streaming binary chunks (file transfer, notification icons).
func (t *Transport) ReadRaw() ([]byte, error) {
	return t.channel.Read()
}

// WriteRaw writes one raw framed record without JSON-RPC interpretation.
func (t *Transport) WriteRaw(plaintext []byte) error {
	return t.channel.Write(plaintext)
}
