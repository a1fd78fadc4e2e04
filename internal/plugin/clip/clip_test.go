package clip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

func TestHandler_ListReportsCapabilities(t *testing.T) {
	cfg := Config{Clipboards: []Entry{
		{Name: "Main", Clipboard: "clipboard", Read: "true", Write: "true"},
		{Name: "ReadOnly", Clipboard: "primary", Read: "true"},
	}}
	h := buildHandler(cfg)

	outcome := h.Handle(&rpc.Request{Method: "list", ID: float64(1)})
	require.Equal(t, plugin.KindContinue, outcome.Kind())

	var items []listItem
	require.NoError(t, json.Unmarshal(outcome.Response().Result, &items))
	require.Len(t, items, 2)
	assert.True(t, items[0].Readable)
	assert.True(t, items[0].Writeable)
	assert.True(t, items[1].Readable)
	assert.False(t, items[1].Writeable)
}

func TestHandler_ReadExecutesConfiguredCommand(t *testing.T) {
	cfg := Config{Clipboards: []Entry{{Name: "Main", Clipboard: "clipboard", Read: "echo -n hello"}}}
	h := buildHandler(cfg)

	outcome := h.Handle(&rpc.Request{Method: "read", ID: float64(2), Params: mustJSON(t, map[string]any{"clipboard": "0"})})
	require.Equal(t, plugin.KindContinue, outcome.Kind())

	var result map[string]any
	require.NoError(t, json.Unmarshal(outcome.Response().Result, &result))
	assert.EqualValues(t, 0, result["code"])
	assert.Equal(t, "hello", result["text"])
}

func TestHandler_WritePipesTextToCommand(t *testing.T) {
	cfg := Config{Clipboards: []Entry{{Name: "Main", Clipboard: "clipboard", Write: "cat > /dev/null"}}}
	h := buildHandler(cfg)

	outcome := h.Handle(&rpc.Request{Method: "write", ID: float64(3), Params: mustJSON(t, map[string]any{"clipboard": "0", "text": "hi"})})
	require.Equal(t, plugin.KindContinue, outcome.Kind())

	var result map[string]any
	require.NoError(t, json.Unmarshal(outcome.Response().Result, &result))
	assert.EqualValues(t, 0, result["code"])
	assert.Equal(t, "OK", result["message"])
}

func TestHandler_ReadUnknownClipboard(t *testing.T) {
	h := buildHandler(Config{})
	outcome := h.Handle(&rpc.Request{Method: "read", ID: float64(4), Params: mustJSON(t, map[string]any{"clipboard": "missing"})})
	require.Equal(t, plugin.KindContinue, outcome.Kind())

	var result map[string]any
	require.NoError(t, json.Unmarshal(outcome.Response().Result, &result))
	assert.EqualValues(t, 1, result["code"])
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
