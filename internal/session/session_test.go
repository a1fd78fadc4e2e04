package session

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcnnt/dcnntd/internal/cryptox"
	"github.com/dcnnt/dcnntd/internal/device"
	"github.com/dcnnt/dcnntd/internal/framing"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/registry"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// echoHandler replies to every request by echoing its params as the result.
type echoHandler struct{}

func (echoHandler) Handle(req *rpc.Request) plugin.Outcome {
	return plugin.ContinueResult(req.ID, map[string]any{"method": req.Method})
}

func newTestServer(t *testing.T) (*Server, *device.Device, *device.Device, net.Listener) {
	t.Helper()
	server := &device.Device{UIN: 7, Name: "Host", Role: device.RoleServer, Password: "serverpass"}
	reg := registry.New(t.TempDir(), server)
	require.NoError(t, reg.Load(context.Background()))

	peer := &device.Device{UIN: 99, Name: "Phone", Role: device.RoleClient, Password: "clientpass"}
	peer.DeriveKeys(server)
	reg.Update(context.Background(), peer.UIN, "127.0.0.1", peer.Name, string(peer.Role))
	ok := reg.UpdatePassword(context.Background(), peer.UIN, peer.Password)
	require.True(t, ok)

	registered, found := reg.Lookup(peer.UIN)
	require.True(t, found)
	peer = &registered

	plugins := plugin.NewRegistry()
	plugins.Register("file", func(plugin.Deps) plugin.Handler { return echoHandler{} })

	srv := New(reg, server, plugins, nil, framing.DefaultMaxRecordBytes, framing.DefaultIdleTimeout)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx, ln)

	return srv, server, peer, ln
}

func buildClientHeader(t *testing.T, dst, src uint32, tag string, sealKey []byte) []byte {
	t.Helper()
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[16:20], dst)
	binary.BigEndian.PutUint32(header[20:24], src)
	sealed, err := cryptox.Seal([]byte(tag), sealKey)
	require.NoError(t, err)
	copy(header[24:60], sealed)
	return header
}

func TestServer_SuccessfulHandshakeAndExchange(t *testing.T) {
	_, server, peer, ln := newTestServer(t)

	conn, err := net.Dial("tcp4", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	header := buildClientHeader(t, server.UIN, peer.UIN, "file", peer.KeyRecv)
	_, err = conn.Write(header)
	require.NoError(t, err)

	var reply [headerSize]byte
	_, err = io.ReadFull(conn, reply[:])
	require.NoError(t, err)

	assert.Equal(t, peer.UIN, binary.BigEndian.Uint32(reply[16:20]))
	assert.Equal(t, server.UIN, binary.BigEndian.Uint32(reply[20:24]))

	plaintext, err := cryptox.Open(reply[24:60], peer.KeySend)
	require.NoError(t, err)
	assert.Equal(t, "file", string(plaintext))

	channel := framing.New(conn, peer.KeySend, peer.KeyRecv)
	require.NoError(t, channel.Write([]byte(`{"jsonrpc":"2.0","method":"list","id":1}`)))

	respRaw, err := channel.Read()
	require.NoError(t, err)
	assert.Contains(t, string(respRaw), `"method":"list"`)
}

// TestServer_HeaderRejectUnknownSource exercises seed scenario 2 from spec
// §8: a header from an unregistered source gets no reply and the socket is
// closed.
func TestServer_HeaderRejectUnknownSource(t *testing.T) {
	_, server, _, ln := newTestServer(t)

	conn, err := net.Dial("tcp4", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[16:20], server.UIN)
	binary.BigEndian.PutUint32(header[20:24], 99999)
	_, err = conn.Write(header)
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err, "server should close the connection without replying")
}
