package sync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/rpc"
	"github.com/dcnnt/dcnntd/internal/syncplan"
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

func TestHandler_DirListRejectsUnknownPath(t *testing.T) {
	h := &handler{transport: &fakeChannel{}, roots: map[string]bool{"/tmp/dcnnt": true}}
	req := &rpc.Request{Method: "dir_list", ID: float64(1), Params: mustJSON(t, map[string]any{
		"path": "/not/configured", "mode": "upload", "data": []any{},
	})}
	outcome := h.Handle(req)
	assert.Equal(t, plugin.KindKill, outcome.Kind())
}

func TestHandler_DirListUploadNewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))

	h := &handler{transport: &fakeChannel{}, roots: map[string]bool{dir: true}}
	req := &rpc.Request{Method: "dir_list", ID: float64(2), Params: mustJSON(t, map[string]any{
		"path": dir, "mode": "upload", "on_conflict": "replace", "on_delete": "keep",
		"data": []syncplan.Entry{{Name: "c.txt", TimestampMs: 1}},
	})}
	outcome := h.Handle(req)
	require.Equal(t, plugin.KindContinue, outcome.Kind())

	var resp syncplan.Response
	require.NoError(t, json.Unmarshal(outcome.Response().Result, &resp))
	assert.Contains(t, resp.Upload, "c.txt")
	assert.NotEmpty(t, resp.Session)
}

func TestHandler_DirUploadRejectsUnknownPath(t *testing.T) {
	h := &handler{transport: &fakeChannel{}, roots: map[string]bool{"/tmp/dcnnt": true}}
	req := &rpc.Request{Method: "dir_upload", ID: float64(3), Params: mustJSON(t, map[string]any{
		"path": "/nope", "name": "x.txt", "size": 1,
	})}
	outcome := h.Handle(req)
	assert.Equal(t, plugin.KindKill, outcome.Kind())
}

func TestHandler_DirUploadReceivesIntoConfiguredRoot(t *testing.T) {
	dir := t.TempDir()
	h := &handler{transport: &fakeChannel{toRead: [][]byte{[]byte("hi")}}, roots: map[string]bool{dir: true}}
	req := &rpc.Request{Method: "dir_upload", ID: float64(4), Params: mustJSON(t, map[string]any{
		"path": dir, "name": "sub/x.txt", "size": 2,
	})}
	outcome := h.Handle(req)
	assert.Equal(t, plugin.KindContinue, outcome.Kind())
	assert.Nil(t, outcome.Response())

	data, err := os.ReadFile(filepath.Join(dir, "sub", "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestHandler_DirDownloadRejectsUnknownPath(t *testing.T) {
	h := &handler{transport: &fakeChannel{}, roots: map[string]bool{"/tmp/dcnnt": true}}
	req := &rpc.Request{Method: "dir_download", ID: float64(5), Params: mustJSON(t, map[string]any{
		"path": "/nope", "name": "x.txt",
	})}
	outcome := h.Handle(req)
	assert.Equal(t, plugin.KindKill, outcome.Kind())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
