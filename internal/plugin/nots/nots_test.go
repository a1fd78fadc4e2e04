package nots

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

type fakeChannel struct {
	toRead [][]byte
}

func (f *fakeChannel) ReadRaw() ([]byte, error) {
	b := f.toRead[0]
	f.toRead = f.toRead[1:]
	return b, nil
}
func (f *fakeChannel) WriteRaw(plaintext []byte) error                { return nil }
func (f *fakeChannel) SendResponse(resp *rpc.Response) error          { return nil }
func (f *fakeChannel) ReadRequest() (*rpc.Request, *rpc.Error, error) { return nil, nil, nil }

func TestHandler_NotificationWithIcon(t *testing.T) {
	dir := t.TempDir()
	iconPath := filepath.Join(dir, "icon.png")

	h := &handler{
		transport: &fakeChannel{toRead: [][]byte{[]byte("PNGDATA")}},
		cfg:       Config{IconPath: iconPath, Cmd: "true"},
	}

	params, err := json.Marshal(map[string]any{"event": "posted", "title": "Hi", "text": "there", "packageIcon": true})
	require.NoError(t, err)

	outcome := h.Handle(&rpc.Request{Method: "notification", Params: params})
	assert.Equal(t, plugin.KindContinue, outcome.Kind())

	data, err := os.ReadFile(iconPath)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
}

func TestHandler_NotificationIgnoresNonPostedEvents(t *testing.T) {
	h := &handler{transport: &fakeChannel{}, cfg: Config{Cmd: "true"}}
	params, err := json.Marshal(map[string]any{"event": "dismissed"})
	require.NoError(t, err)
	outcome := h.Handle(&rpc.Request{Method: "notification", Params: params})
	assert.Equal(t, plugin.KindContinue, outcome.Kind())
}
