// Package discovery implements the UDP discovery/pairing responder (C5):
// answer server-search broadcasts with identity and, while a pairing code
// is active, complete the password exchange. Grounded on
// original_source/dcnnt/server_search.py's ServerSearchHandler.
package discovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/dcnnt/dcnntd/internal/cryptox"
	"github.com/dcnnt/dcnntd/internal/device"
	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/metrics"
	"github.com/dcnnt/dcnntd/internal/registry"
)

// maxDatagramBytes bounds a single read; oversized or garbage datagrams are
// simply truncated and will fail JSON decoding.
const maxDatagramBytes = 65536

// request is the wire shape of an incoming search datagram (spec §4.5).
type request struct {
	Plugin string `json:"plugin"`
	Action string `json:"action"`
	UIN    uint32 `json:"uin"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Pair   string `json:"pair,omitempty"`
}

// response is the wire shape of the responder's reply.
type response struct {
	Plugin string `json:"plugin"`
	Action string `json:"action"`
	Role   string `json:"role"`
	UIN    uint32 `json:"uin"`
	Name   string `json:"name"`
	Pair   string `json:"pair,omitempty"`
}

// Responder answers UDP discovery datagrams and, in pairing mode, completes
// the password exchange against Pairing's state machine.
type Responder struct {
	conn     *net.UDPConn
	registry *registry.Registry
	server   *device.Device
	pairing  *Pairing
	metrics  *metrics.Metrics
}

// New binds a UDP socket on addr (host:port, empty host for all
// interfaces) and returns a Responder ready for Serve. server is the local
// identity (uin, name, password) echoed in every reply.
func New(addr string, reg *registry.Registry, server *device.Device, pairing *Pairing, m *metrics.Metrics) (*Responder, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}
	if pairing == nil {
		pairing = NewPairing("")
	}
	return &Responder{conn: conn, registry: reg, server: server, pairing: pairing, metrics: m}, nil
}

// Close releases the UDP socket.
func (r *Responder) Close() error { return r.conn.Close() }

// Addr returns the socket's bound local address, useful when New was
// called with an ephemeral port (":0").
func (r *Responder) Addr() net.Addr { return r.conn.LocalAddr() }

// Serve reads datagrams until ctx is canceled or the socket is closed.
// Malformed datagrams are logged and ignored; they never stop the loop.
func (r *Responder) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.conn.Close()
	}()

	buf := make([]byte, maxDatagramBytes)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("discovery: read: %w", err)
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		r.handleDatagram(ctx, datagram, addr)
	}
}

func (r *Responder) handleDatagram(ctx context.Context, raw []byte, addr *net.UDPAddr) {
	r.metrics.DiscoveryRequest()

	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.WarnCtx(ctx, "discovery: malformed datagram", logger.Err(err), logger.ClientIP(addr.IP.String()))
		return
	}

	if req.Plugin != "search" {
		return
	}

	switch req.Action {
	case "request":
		r.handleRequest(ctx, req, addr)
	case "response":
		// A peer that itself broadcasts search requests will also see our
		// replies echoed back on shared subnets; a response is not a
		// request and draws no further reply (peer-to-peer symmetry).
		return
	default:
		logger.WarnCtx(ctx, "discovery: unknown action", "action", req.Action)
	}
}

func (r *Responder) handleRequest(ctx context.Context, req request, addr *net.UDPAddr) {
	ip := addr.IP.String()
	r.registry.Update(ctx, req.UIN, ip, req.Name, req.Role)

	resp := response{
		Plugin: "search",
		Action: "response",
		Role:   "server",
		UIN:    r.server.UIN,
		Name:   r.server.Name,
	}

	code := r.pairing.Code()
	if code != "" {
		if req.Pair != "" {
			r.tryCompletePairing(ctx, code, req.UIN, req.Pair)
		}
		sealed, err := cryptox.Seal([]byte(r.server.Password), cryptox.DeriveKey(code+strconv.FormatUint(uint64(req.UIN), 10))[:])
		if err != nil {
			logger.WarnCtx(ctx, "discovery: failed to seal pairing payload", logger.Err(err), logger.PeerUIN(req.UIN))
		} else {
			resp.Pair = base64.StdEncoding.EncodeToString(sealed)
		}
	}

	r.send(ctx, resp, addr)
}

// tryCompletePairing implements spec §4.5 step 3. The open-question
// ordering from spec §9 is preserved literally: registry.Update above has
// already recorded the device's IP before this decryption is attempted.
func (r *Responder) tryCompletePairing(ctx context.Context, code string, uin uint32, pairField string) {
	sealed, err := base64.StdEncoding.DecodeString(pairField)
	if err != nil {
		logger.WarnCtx(ctx, "discovery: bad base64 in pair field", logger.Err(err), logger.PeerUIN(uin))
		return
	}

	key := cryptox.DeriveKey(code + strconv.FormatUint(uint64(uin), 10))
	plaintext, err := cryptox.Open(sealed, key[:])
	if err != nil {
		logger.WarnCtx(ctx, "discovery: pairing payload failed to decrypt", logger.PeerUIN(uin))
		return
	}

	password := string(plaintext)
	if r.registry.UpdatePassword(ctx, uin, password) {
		logger.InfoCtx(ctx, "discovery: device paired", logger.PeerUIN(uin))
		r.metrics.DiscoveryPairing()
		r.pairing.MarkPaired(uin)
	}
}

func (r *Responder) send(ctx context.Context, resp response, addr *net.UDPAddr) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.WarnCtx(ctx, "discovery: failed to marshal response", logger.Err(err))
		return
	}
	if _, err := r.conn.WriteToUDP(data, addr); err != nil {
		logger.WarnCtx(ctx, "discovery: failed to send response", logger.Err(err), logger.ClientIP(addr.IP.String()))
	}
}
