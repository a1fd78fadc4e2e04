package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeysSymmetry(t *testing.T) {
	server := &Device{UIN: 7, Name: "Host", Role: RoleServer, Password: "server-pass"}
	peer := &Device{UIN: 42, Name: "Phone", Role: RoleClient, Password: "peer-pass"}

	peer.DeriveKeys(server)

	// Simulate the peer's own view of the pairing: from the peer's side,
	// "S" is the local server (itself) and "D" is our server.
	peerView := &Device{UIN: server.UIN, Password: server.Password}
	peerView.DeriveKeys(&Device{UIN: peer.UIN, Password: peer.Password})

	require.NotNil(t, peer.KeySend)
	require.NotNil(t, peerView.KeyRecv)
	assert.Equal(t, peer.KeySend, peerView.KeyRecv, "server.key_send(D) must equal D.key_recv(S)")

	require.NotNil(t, peer.KeyRecv)
	require.NotNil(t, peerView.KeySend)
	assert.Equal(t, peer.KeyRecv, peerView.KeySend, "server.key_recv(D) must equal D.key_send(S)")
}

func TestDeriveKeysRequiresBothPasswords(t *testing.T) {
	server := &Device{UIN: 7, Password: "server-pass"}
	peer := &Device{UIN: 42, Password: ""}

	peer.DeriveKeys(server)

	assert.Nil(t, peer.KeyRecv)
	assert.Nil(t, peer.KeySend)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole("client"))
	assert.True(t, ValidRole("server"))
	assert.True(t, ValidRole("proxy"))
	assert.False(t, ValidRole("admin"))
	assert.False(t, ValidRole(""))
}
