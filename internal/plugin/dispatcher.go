package plugin

import (
	"context"

	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// Handler processes one JSON-RPC request for a single plugin instance.
// Implementations are constructed fresh per session (spec §5, §9: "prefer
// per-session" over the source's class-level shared state).
type Handler interface {
	Handle(req *rpc.Request) Outcome
}

// Transport is the subset of *rpc.Transport the dispatcher loop needs.
type Transport interface {
	ReadRequest() (*rpc.Request, *rpc.Error, error)
	SendResponse(resp *rpc.Response) error
}

// Run drives the outer message loop common to every plugin (spec §4.7):
//
//	loop:
//	  req ← channel.rpcRead()
//	  if req is None: return               // clean end-of-stream
//	  try: plugin.handle(req)
//	  catch HandlerExit(resp):  channel.rpcSend(resp)   // continue loop
//	  catch HandlerFail(msg):   log(msg)                // continue loop, NO reply
//	  catch PluginFail(msg):    log(msg); return         // terminate session
//
// A request that fails to decode at the codec layer is answered with a
// JSON-RPC error addressed to its id when one could be recovered from the
// otherwise-malformed payload (spec §4.4); a payload that doesn't even
// parse as JSON carries no id to address, so per spec §4.4's "otherwise the
// session is closed" the session is torn down with no reply at all,
// matching original_source/dcnnt/plugins/base.py's rpc_read returning None
// on any decode exception.
func Run(ctx context.Context, t Transport, h Handler, tag string) {
	for {
		req, decErr, err := t.ReadRequest()
		if err != nil {
			logger.DebugCtx(ctx, "plugin session ended", logger.Plugin(tag), logger.Err(err))
			return
		}
		if decErr != nil {
			if decErr.Code == rpc.CodeParseError {
				logger.WarnCtx(ctx, "unparseable request, closing session", logger.Plugin(tag), logger.Err(decErr))
				return
			}
			logger.WarnCtx(ctx, "malformed request, replying with codec error", logger.Plugin(tag), logger.Err(decErr))
			if sendErr := t.SendResponse(rpc.NewErrorResponse(req.ID, decErr)); sendErr != nil {
				logger.WarnCtx(ctx, "failed to send codec error response", logger.Plugin(tag), logger.Err(sendErr))
				return
			}
			continue
		}
		if req == nil {
			logger.DebugCtx(ctx, "no more requests, stopping plugin loop", logger.Plugin(tag))
			return
		}

		outcome := h.Handle(req)
		switch outcome.Kind() {
		case KindContinue:
			if resp := outcome.Response(); resp != nil {
				if err := t.SendResponse(resp); err != nil {
					logger.WarnCtx(ctx, "failed to send response", logger.Plugin(tag), logger.Method(req.Method), logger.Err(err))
					return
				}
			}
		case KindAbort:
			logger.WarnCtx(ctx, "handler aborted request", logger.Plugin(tag), logger.Method(req.Method), "reason", outcome.LogMessage())
		case KindKill:
			logger.WarnCtx(ctx, "plugin terminating session", logger.Plugin(tag), logger.Method(req.Method), "reason", outcome.LogMessage())
			return
		}
	}
}
