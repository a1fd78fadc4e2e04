//go:build !windows

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsProcessRunning_NonexistentFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "nonexistent.pid")

	pid, running := isProcessRunning(pidPath)
	require.False(t, running)
	require.Zero(t, pid)
}

func TestIsProcessRunning_InvalidPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "invalid.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("notanumber"), 0o644))

	pid, running := isProcessRunning(pidPath)
	require.False(t, running)
	require.Zero(t, pid)
}

func TestIsProcessRunning_DeadProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "dead.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte("9999999"), 0o644))

	pid, running := isProcessRunning(pidPath)
	require.False(t, running)
	require.Zero(t, pid)
}

func TestIsProcessRunning_CurrentProcess(t *testing.T) {
	currentPID := os.Getpid()
	pidPath := filepath.Join(t.TempDir(), "current.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", currentPID)), 0o644))

	pid, running := isProcessRunning(pidPath)
	require.True(t, running)
	require.Equal(t, currentPID, pid)
}
