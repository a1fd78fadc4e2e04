package commands

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunStop_MissingPidFileIsUsageError(t *testing.T) {
	stopPidFile = filepath.Join(t.TempDir(), "missing.pid")
	defer func() { stopPidFile = "" }()

	err := runStop(stopCmd, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUsage))
}
