package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsNilWhenDisabled(t *testing.T) {
	mu.Lock()
	registry = nil
	mu.Unlock()

	assert.Nil(t, New())
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionAccepted()
		m.SetActiveSessions(3)
		m.SessionRejected("unknown_peer")
		m.FrameRead("file")
		m.FrameWritten("file")
		m.BytesTransferred("file", "read", 1024)
		m.DiscoveryRequest()
		m.DiscoveryPairing()
	})
}

func TestNewRegistersWhenEnabled(t *testing.T) {
	Init()
	t.Cleanup(func() {
		mu.Lock()
		registry = nil
		mu.Unlock()
	})

	require.True(t, IsEnabled())
	m := New()
	require.NotNil(t, m)

	m.SessionAccepted()
	m.SetActiveSessions(1)

	families, err := GetRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
