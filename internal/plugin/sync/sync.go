// Package sync implements the "sync" plugin tag (C10): directory
// reconciliation between client and server, delegating the three-way
// diff to internal/syncplan and the bulk transfer to internal/plugin/filexfer.
// Grounded on original_source/dcnnt/plugins/sync.py's SyncPlugin, whose
// dir[].path configuration and dir_list/dir_upload/dir_download contract
// this keeps; process_dir_list's ad hoc to_create/to_backup/to_download
// lists are replaced by internal/syncplan.Compute's richer on_conflict/
// on_delete rule set per spec §4.9.
package sync

import (
	"os"
	"path/filepath"

	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/plugin/filexfer"
	"github.com/dcnnt/dcnntd/internal/pluginconfig"
	"github.com/dcnnt/dcnntd/internal/rpc"
	"github.com/dcnnt/dcnntd/internal/syncplan"
)

// DirEntry describes one directory available for sync.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Config is the sync plugin's configuration, loaded from sync.conf.json.
type Config struct {
	Dirs []DirEntry `json:"dir"`
}

func applyDefaults(c *Config) {
	if len(c.Dirs) == 0 {
		c.Dirs = []DirEntry{{Name: "Temporary", Path: "/tmp/dcnnt"}}
	}
}

type handler struct {
	transport filexfer.Channel
	roots     map[string]bool
}

// NewFactory returns a plugin.Factory backed by store, the live
// configuration for the "sync" mark.
func NewFactory(store *pluginconfig.Store) plugin.Factory {
	return func(deps plugin.Deps) plugin.Handler {
		var cfg Config
		if store != nil {
			if err := store.Unmarshal(deps.Device.UIN, &cfg); err != nil {
				logger.Warn("sync: using defaults, config unmarshal failed", logger.Plugin("sync"), logger.PeerUIN(deps.Device.UIN), logger.Err(err))
			}
		}
		applyDefaults(&cfg)

		roots := make(map[string]bool, len(cfg.Dirs))
		for _, d := range cfg.Dirs {
			roots[d.Path] = true
		}
		return &handler{transport: deps.Transport, roots: roots}
	}
}

func (h *handler) Handle(req *rpc.Request) plugin.Outcome {
	switch req.Method {
	case "dir_list":
		return h.handleDirList(req)
	case "dir_upload":
		return h.handleDirUpload(req)
	case "dir_download":
		return h.handleDirDownload(req)
	default:
		return plugin.ContinueError(req.ID, rpc.NewError(rpc.CodeMethodNotFound, "unknown method: "+req.Method))
	}
}

type dirListParams struct {
	Data       []syncplan.Entry    `json:"data"`
	Mode       syncplan.Mode       `json:"mode"`
	Path       string              `json:"path"`
	OnConflict syncplan.OnConflict `json:"on_conflict"`
	OnDelete   syncplan.OnDelete   `json:"on_delete"`
}

func (h *handler) handleDirList(req *rpc.Request) plugin.Outcome {
	var params dirListParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}

	if !h.roots[params.Path] {
		return plugin.Kill("sync: unknown target path: " + params.Path)
	}

	plan, err := syncplan.Compute(params.Path, params.Mode, params.OnConflict, params.OnDelete, params.Data)
	if err != nil {
		return plugin.Kill("sync: dir_list failed: " + err.Error())
	}

	return plugin.ContinueResult(req.ID, plan.Response())
}

type dirTransferParams struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (h *handler) resolve(params dirTransferParams) (string, bool) {
	if !h.roots[params.Path] {
		return "", false
	}
	return filepath.Join(params.Path, filepath.FromSlash(params.Name)), true
}

func (h *handler) handleDirUpload(req *rpc.Request) plugin.Outcome {
	var params dirTransferParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}

	dest, ok := h.resolve(params)
	if !ok {
		return plugin.Kill("sync: unknown target path: " + params.Path)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return plugin.Kill("sync: create parent directory: " + err.Error())
	}
	return filexfer.Receive(h.transport, req.ID, dest, params.Size)
}

func (h *handler) handleDirDownload(req *rpc.Request) plugin.Outcome {
	var params dirTransferParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}

	src, ok := h.resolve(params)
	if !ok {
		return plugin.Kill("sync: unknown target path: " + params.Path)
	}
	return filexfer.Send(h.transport, req.ID, src, nil)
}
