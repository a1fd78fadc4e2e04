package open

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
	toRead    [][]byte
	responses []*rpc.Response
}

func (f *fakeChannel) ReadRaw() ([]byte, error) {
	b := f.toRead[0]
	f.toRead = f.toRead[1:]
	return b, nil
}
func (f *fakeChannel) WriteRaw(plaintext []byte) error { return nil }
func (f *fakeChannel) SendResponse(resp *rpc.Response) error {
	f.responses = append(f.responses, resp)
	return nil
}
func (f *fakeChannel) ReadRequest() (*rpc.Request, *rpc.Error, error) { return nil, nil, nil }

func TestHandler_OpenFileReceivesAndRuns(t *testing.T) {
	dir := t.TempDir()
	h := &handler{transport: &fakeChannel{toRead: [][]byte{[]byte("data")}}, cfg: Config{}}
	h.cfg.File.DownloadDirectory = dir
	h.cfg.File.DefaultCmd = "true {path}"

	req := &rpc.Request{Method: "open_file", ID: float64(1), Params: mustJSON(t, map[string]any{"name": "x.bin", "size": 4})}
	outcome := h.Handle(req)
	assert.Equal(t, plugin.KindContinue, outcome.Kind())

	data, err := os.ReadFile(filepath.Join(dir, "x.bin"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestHandler_OpenLinkRepliesThenSpawns(t *testing.T) {
	ch := &fakeChannel{}
	h := &handler{transport: ch, cfg: Config{}}
	h.cfg.Link.DefaultCmd = "true {url}"

	req := &rpc.Request{Method: "open_link", ID: float64(2), Params: mustJSON(t, map[string]any{"link": "https://example.com"})}
	outcome := h.Handle(req)
	assert.Equal(t, plugin.KindContinue, outcome.Kind())
	assert.Nil(t, outcome.Response(), "open_link sends its own response directly")
	require.Len(t, ch.responses, 1)

	var result map[string]any
	require.NoError(t, json.Unmarshal(ch.responses[0].Result, &result))
	assert.EqualValues(t, 0, result["code"])
}

func TestHandler_OpenLinkMissingParam(t *testing.T) {
	h := &handler{transport: &fakeChannel{}}
	req := &rpc.Request{Method: "open_link", ID: float64(3), Params: mustJSON(t, map[string]any{})}
	outcome := h.Handle(req)
	assert.Equal(t, plugin.KindAbort, outcome.Kind())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
