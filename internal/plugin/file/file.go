// Package file implements the "file" plugin tag (C10): list the configured
// shared directories, receive uploads into a download directory, and send
// shared files by index. Grounded on
// original_source/dcnnt/plugins/file_transfer.py's FileTransferPlugin.
package file

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/plugin/filexfer"
	"github.com/dcnnt/dcnntd/internal/pluginconfig"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// DirConfig describes one shared directory (spec §4.7's file.list contract).
type DirConfig struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
	Glob string `json:"glob,omitempty"`
	Deep int    `json:"deep,omitempty"`
}

// Config is the file plugin's configuration, loaded from file.conf.json
// (and per-device overrides) via internal/pluginconfig.
type Config struct {
	DownloadDirectory string      `json:"download_directory"`
	OnDownload        string      `json:"on_download,omitempty"`
	SharedDirs        []DirConfig `json:"shared_dirs"`
}

func applyDefaults(c *Config) {
	if c.DownloadDirectory == "" {
		c.DownloadDirectory = "/tmp/dcnnt/files"
	}
	for i := range c.SharedDirs {
		if c.SharedDirs[i].Glob == "" {
			c.SharedDirs[i].Glob = "*"
		}
		if c.SharedDirs[i].Deep == 0 {
			c.SharedDirs[i].Deep = 1
		}
	}
}

// Node is one entry in the shared-directory tree returned by file.list.
// Size, present on the source's tree serialization and restored here
// (spec_full §M10), lets clients show file sizes before downloading.
type Node struct {
	Name     string `json:"name"`
	NodeType string `json:"node_type"`
	Size     int64  `json:"size"`
	Index    *int   `json:"index,omitempty"`
	Children []Node `json:"children,omitempty"`
}

type handler struct {
	transport   filexfer.Channel
	uin         uint32
	cfg         Config
	sharedIndex []string
}

// NewFactory returns a plugin.Factory backed by store, the live
// configuration for the "file" mark.
func NewFactory(store *pluginconfig.Store) plugin.Factory {
	return func(deps plugin.Deps) plugin.Handler {
		h := &handler{transport: deps.Transport, uin: deps.Device.UIN}
		if store != nil {
			if err := store.Unmarshal(deps.Device.UIN, &h.cfg); err != nil {
				logger.Warn("file: using defaults, config unmarshal failed", logger.Plugin("file"), logger.PeerUIN(deps.Device.UIN), logger.Err(err))
			}
		}
		applyDefaults(&h.cfg)
		return h
	}
}

func (h *handler) Handle(req *rpc.Request) plugin.Outcome {
	switch req.Method {
	case "list":
		return h.handleList(req)
	case "upload":
		return h.handleUpload(req)
	case "download":
		return h.handleDownload(req)
	default:
		return plugin.ContinueError(req.ID, rpc.NewError(rpc.CodeMethodNotFound, "unknown method: "+req.Method))
	}
}

func (h *handler) handleList(req *rpc.Request) plugin.Outcome {
	h.sharedIndex = h.sharedIndex[:0]
	names := make(map[string]int)

	var tree []Node
	for _, dir := range h.cfg.SharedDirs {
		node, ok := h.buildDirectoryNode(dir, names)
		if ok {
			tree = append(tree, node)
		}
	}
	if tree == nil {
		tree = []Node{}
	}
	return plugin.ContinueResult(req.ID, tree)
}

func (h *handler) buildDirectoryNode(dir DirConfig, names map[string]int) (Node, bool) {
	info, err := os.Stat(dir.Path)
	if err != nil || !info.IsDir() {
		logger.Warn("file: shared directory not found", logger.Plugin("file"), logger.Path(dir.Path))
		return Node{}, false
	}

	name := dir.Name
	if name == "" {
		name = filepath.Base(dir.Path)
	}
	if n, taken := names[name]; taken {
		names[name] = n + 1
		name = name + " (" + strconv.Itoa(n + 1) + ")"
	} else {
		names[name] = 0
	}

	children := h.listDirectory(dir.Path, dir.Glob, dir.Deep, 1)
	return Node{Name: name, NodeType: "directory", Size: int64(len(children)), Children: children}, true
}

func (h *handler) listDirectory(dir, glob string, maxDeep, currentDeep int) []Node {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("file: could not list directory", logger.Plugin("file"), logger.Path(dir), logger.Err(err))
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var res []Node
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if currentDeep < maxDeep {
				children := h.listDirectory(path, glob, maxDeep, currentDeep+1)
				res = append(res, Node{Name: entry.Name(), NodeType: "directory", Size: int64(len(children)), Children: children})
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		matched, err := filepath.Match(glob, entry.Name())
		if err != nil || !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		h.sharedIndex = append(h.sharedIndex, path)
		index := len(h.sharedIndex) - 1
		res = append(res, Node{Name: entry.Name(), NodeType: "file", Size: info.Size(), Index: &index})
	}
	return res
}

type uploadParams struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (h *handler) handleUpload(req *rpc.Request) plugin.Outcome {
	var params uploadParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}
	if err := os.MkdirAll(h.cfg.DownloadDirectory, 0o755); err != nil {
		return plugin.Kill("file: create download directory: " + err.Error())
	}

	dest := filepath.Join(h.cfg.DownloadDirectory, filepath.Base(params.Name))
	outcome := filexfer.Receive(h.transport, req.ID, dest, params.Size)
	if outcome.Kind() == plugin.KindContinue && h.cfg.OnDownload != "" {
		command := strings.ReplaceAll(h.cfg.OnDownload, "{path}", dest)
		logger.Info("file: executing on_download command", logger.Plugin("file"), "command", command)
		if err := exec.Command("sh", "-c", command).Start(); err != nil {
			logger.Warn("file: on_download command failed to start", logger.Plugin("file"), logger.Err(err))
		}
	}
	return outcome
}

type downloadParams struct {
	Index int   `json:"index"`
	Size  int64 `json:"size"`
}

func (h *handler) handleDownload(req *rpc.Request) plugin.Outcome {
	var params downloadParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}
	if params.Index < 0 || params.Index >= len(h.sharedIndex) {
		return plugin.ContinueResult(req.ID, map[string]any{"code": 1, "message": "No such index: " + strconv.Itoa(params.Index)})
	}
	path := h.sharedIndex[params.Index]
	return filexfer.Send(h.transport, req.ID, path, &params.Size)
}
