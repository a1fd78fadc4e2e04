package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunDoc_PrintsSchemaAndPluginTable(t *testing.T) {
	var out bytes.Buffer
	docCmd.SetOut(&out)
	docSchemaOutput = ""

	require.NoError(t, runDoc(docCmd, nil))

	output := out.String()
	require.Contains(t, output, "dcnntd configuration")
	require.Contains(t, output, "Plugins and methods")
	require.Contains(t, output, "sync")
	require.Contains(t, output, "dir_list")
}
