// Package session implements the TCP accept loop and per-connection
// handshake (C6): one goroutine per connection, the 60-byte header phase,
// plugin selection, and handoff into the service dispatcher (C7).
// Grounded on original_source/dcnnt/tcp_server.py's
// DConnectThreadingTCPServer/DConnectHandler.
package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/dcnnt/dcnntd/internal/cryptox"
	"github.com/dcnnt/dcnntd/internal/device"
	"github.com/dcnnt/dcnntd/internal/framing"
	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/metrics"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/registry"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// headerSize is the fixed session header length (spec §3).
const headerSize = 60

// pluginTagSize is the length of the plugin tag sealed into header[24:60].
const pluginTagSize = 4

// Server runs the TCP accept loop and hands each connection off to the
// header phase and then the matching plugin's dispatcher loop.
type Server struct {
	registry       *registry.Registry
	server         *device.Device
	plugins        *plugin.Registry
	metrics        *metrics.Metrics
	maxFrameBytes  int
	idleTimeout    time.Duration
	activeSessions atomic.Int64
}

// New builds a Server. maxFrameBytes and idleTimeout configure every
// accepted connection's framing.Channel (spec §4.3, Config.Limits).
func New(reg *registry.Registry, server *device.Device, plugins *plugin.Registry, m *metrics.Metrics, maxFrameBytes int, idleTimeout time.Duration) *Server {
	return &Server{
		registry:      reg,
		server:        server,
		plugins:       plugins,
		metrics:       m,
		maxFrameBytes: maxFrameBytes,
		idleTimeout:   idleTimeout,
	}
}

// Serve accepts connections on ln until ctx is canceled or accept fails.
// Each connection is handled on its own goroutine; a panic inside one
// connection's handling is recovered and never reaches the accept loop
// (spec §4.6, §7).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("session: accept: %w", err)
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "session: recovered from panic", "panic", fmt.Sprint(r), logger.ClientIP(remoteIP(conn)))
		}
		conn.Close()
	}()

	channel, tag, peer, ok := s.handshake(ctx, conn)
	if !ok {
		return
	}

	s.metrics.SessionAccepted()
	s.metrics.SetActiveSessions(int(s.activeSessions.Add(1)))
	defer func() { s.metrics.SetActiveSessions(int(s.activeSessions.Add(-1))) }()

	factory, found := s.plugins.Lookup(tag)
	if !found {
		// handshake already validated tag against the registry; this is
		// unreachable in practice but kept as a defensive close.
		return
	}

	transport := rpc.NewTransport(channel)
	handler := factory(plugin.Deps{Transport: transport, Device: peer, Metrics: s.metrics})
	plugin.Run(ctx, transport, handler, tag)
}

// handshake implements spec §4.6 steps 1-3. On any rejection it logs a
// warning, closes nothing itself (the caller's defer does that), and
// returns ok=false.
func (s *Server) handshake(ctx context.Context, conn net.Conn) (*framing.Channel, string, device.Device, bool) {
	if err := conn.SetDeadline(time.Now().Add(framing.HeaderTimeout)); err != nil {
		logger.WarnCtx(ctx, "session: failed to set header deadline", logger.Err(err))
		return nil, "", device.Device{}, false
	}

	var header [headerSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		logger.WarnCtx(ctx, "session: failed to read header", logger.Err(err), logger.ClientIP(remoteIP(conn)))
		return nil, "", device.Device{}, false
	}

	dst := binary.BigEndian.Uint32(header[16:20])
	src := binary.BigEndian.Uint32(header[20:24])

	if dst != s.server.UIN {
		logger.WarnCtx(ctx, "session: header addressed to unknown destination", "dst", dst, logger.ClientIP(remoteIP(conn)))
		s.metrics.SessionRejected("unknown_destination")
		return nil, "", device.Device{}, false
	}

	peer, found := s.registry.Lookup(src)
	if !found {
		logger.WarnCtx(ctx, "session: header from unknown source", logger.PeerUIN(src), logger.ClientIP(remoteIP(conn)))
		s.metrics.SessionRejected("unknown_source")
		return nil, "", device.Device{}, false
	}
	if len(peer.KeyRecv) == 0 {
		logger.WarnCtx(ctx, "session: peer has no recv key", logger.PeerUIN(src))
		s.metrics.SessionRejected("no_key")
		return nil, "", device.Device{}, false
	}

	plaintext, err := cryptox.Open(header[24:60], peer.KeyRecv)
	if err != nil || len(plaintext) != pluginTagSize {
		logger.WarnCtx(ctx, "session: incorrect password", logger.PeerUIN(src))
		s.metrics.SessionRejected("auth_failed")
		return nil, "", device.Device{}, false
	}
	tag := string(plaintext)

	if _, found := s.plugins.Lookup(tag); !found {
		logger.WarnCtx(ctx, "session: unknown plugin tag", logger.Plugin(tag), logger.PeerUIN(src))
		s.metrics.SessionRejected("unknown_plugin")
		return nil, "", device.Device{}, false
	}

	if len(peer.KeySend) == 0 {
		logger.WarnCtx(ctx, "session: peer has no send key, cannot reply", logger.PeerUIN(src))
		s.metrics.SessionRejected("no_key")
		return nil, "", device.Device{}, false
	}

	reply, err := buildHandshakeReply(src, s.server.UIN, tag, peer.KeySend)
	if err != nil {
		logger.WarnCtx(ctx, "session: failed to build handshake reply", logger.Err(err), logger.PeerUIN(src))
		return nil, "", device.Device{}, false
	}
	if _, err := conn.Write(reply); err != nil {
		logger.WarnCtx(ctx, "session: failed to send handshake reply", logger.Err(err), logger.PeerUIN(src))
		return nil, "", device.Device{}, false
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		logger.WarnCtx(ctx, "session: failed to clear deadline", logger.Err(err))
		return nil, "", device.Device{}, false
	}

	channel := framing.New(conn, peer.KeyRecv, peer.KeySend,
		framing.WithMaxRecordBytes(s.maxFrameBytes),
		framing.WithIdleTimeout(s.idleTimeout),
	)
	return channel, tag, peer, true
}

// buildHandshakeReply constructs the 60-byte response header of spec §4.6
// step 3: 16 zero bytes, src's uin, the server's uin, then the sealed
// plugin tag.
func buildHandshakeReply(srcUIN, serverUIN uint32, tag string, keySend []byte) ([]byte, error) {
	sealed, err := cryptox.Seal([]byte(tag), keySend)
	if err != nil {
		return nil, fmt.Errorf("session: seal plugin tag: %w", err)
	}

	reply := make([]byte, headerSize)
	binary.BigEndian.PutUint32(reply[16:20], srcUIN)
	binary.BigEndian.PutUint32(reply[20:24], serverUIN)
	copy(reply[24:60], sealed)
	return reply, nil
}

func remoteIP(conn net.Conn) string {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return conn.RemoteAddr().String()
	}
	return addr.IP.String()
}
