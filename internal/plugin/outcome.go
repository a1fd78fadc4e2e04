// Package plugin implements the service dispatcher outer loop (C7) shared by
// every plugin: read one JSON-RPC request, hand it to the plugin's Handle
// method, and act on the three-outcome result in place of the source's
// exception classes (spec §4.7, §9 Design Notes).
package plugin

import "github.com/dcnnt/dcnntd/internal/rpc"

// Kind distinguishes the three outcomes a Handle call may produce.
type Kind int

const (
	// KindContinue carries a well-formed response to send before the loop
	// continues reading requests (source: HandlerExit).
	KindContinue Kind = iota
	// KindAbort is a per-request failure with no protocol reply; the loop
	// continues (source: HandlerFail).
	KindAbort
	// KindKill terminates the whole session with no protocol reply
	// (source: PluginFail).
	KindKill
)

// Outcome is returned by every plugin Handle call in place of a thrown
// exception.
type Outcome struct {
	kind     Kind
	response *rpc.Response
	logMsg   string
}

// Continue builds a KindContinue outcome carrying resp.
func Continue(resp *rpc.Response) Outcome {
	return Outcome{kind: KindContinue, response: resp}
}

// Abort builds a KindAbort outcome logged with msg; no reply is sent.
func Abort(msg string) Outcome {
	return Outcome{kind: KindAbort, logMsg: msg}
}

// Kill builds a KindKill outcome logged with msg; the session ends.
func Kill(msg string) Outcome {
	return Outcome{kind: KindKill, logMsg: msg}
}

// Kind reports which of Continue/Abort/Kill this outcome represents.
func (o Outcome) Kind() Kind { return o.kind }

// Response returns the reply to send for a KindContinue outcome.
func (o Outcome) Response() *rpc.Response { return o.response }

// LogMessage returns the message to log for KindAbort/KindKill outcomes.
func (o Outcome) LogMessage() string { return o.logMsg }

// ContinueResult builds a KindContinue outcome wrapping a success result for
// id, the common case of "handle the request, reply with a result object".
func ContinueResult(id any, result any) Outcome {
	resp, err := rpc.NewResultResponse(id, result)
	if err != nil {
		return Kill("marshal result: " + err.Error())
	}
	return Continue(resp)
}

// ContinueError builds a KindContinue outcome wrapping a JSON-RPC error
// response for id.
func ContinueError(id any, rpcErr *rpc.Error) Outcome {
	return Continue(rpc.NewErrorResponse(id, rpcErr))
}
