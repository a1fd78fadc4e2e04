package commands

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersEveryMode(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}

	for _, mode := range []string{"start", "foreground", "stop", "restart", "pair", "doc"} {
		require.True(t, names[mode], "expected %q subcommand to be registered", mode)
	}
}

func TestGeneratePairingCode_IsSixDigits(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := generatePairingCode()
		require.NoError(t, err)
		require.Regexp(t, re, code)
	}
}

func TestGetDefaultPidFile_UnderStateDir(t *testing.T) {
	require.Contains(t, GetDefaultPidFile(), GetDefaultStateDir())
	require.Contains(t, GetDefaultPidFile(), "dcnntd.pid")
}

func TestGetDefaultLogFile_UnderStateDir(t *testing.T) {
	require.Contains(t, GetDefaultLogFile(), GetDefaultStateDir())
	require.Contains(t, GetDefaultLogFile(), "dcnntd.log")
}
