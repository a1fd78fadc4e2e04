// Package rpc implements the JSON-RPC 2.0 request/response/notification
// codec (C4) carried over a framing.Channel. Every message is exactly one
// JSON object; batch/array semantics are unused on this transport (spec
// §4.4).
package rpc

import (
	"encoding/json"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes (spec §4.4).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewError constructs an *Error with the given standard or custom code.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Request is a JSON-RPC request or notification. A notification omits ID.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// IsNotification reports whether this request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response is a JSON-RPC response: exactly one of Result/Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResultResponse builds a success response for id carrying result,
// marshaled to JSON.
func NewResultResponse(id any, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal result: %w", err)
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response for id.
func NewErrorResponse(id any, err *Error) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: err}
}

// Decode parses a single JSON-RPC request object from raw. On failure it
// still returns the request, populated as far as json.Unmarshal got before
// the error was detected, alongside the *Error describing the problem; per
// spec §4.4 the reply must be addressed to the offending id when one was
// recovered (a malformed-request error still has a well-formed "id" most of
// the time), and the caller closes the session only when req.ID is
// unusable (raw JSON failed to parse at all). The caller decides whether to
// reply or close.
func Decode(raw []byte) (*Request, *Error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return &req, NewError(CodeParseError, "invalid JSON")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return &req, NewError(CodeInvalidRequest, "invalid request")
	}
	return &req, nil
}

// Encode serializes resp to its wire JSON form.
func Encode(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal response: %w", err)
	}
	return data, nil
}

// UnmarshalParams decodes req.Params into v, returning an InvalidParams
// error on failure.
func UnmarshalParams(req *Request, v any) *Error {
	if len(req.Params) == 0 {
		return NewError(CodeInvalidParams, "missing params")
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return NewError(CodeInvalidParams, "invalid params: "+err.Error())
	}
	return nil
}
