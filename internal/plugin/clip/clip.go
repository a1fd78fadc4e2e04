// Package clip implements the "clip" plugin tag (C10): read/write a
// configured set of system clipboards on behalf of the paired client.
// Grounded on original_source/dcnnt/plugins/clipboard.py's ClipboardPlugin,
// including its per-clipboard read/write command templates and the
// stable per-clipboard key used by the client to address one.
package clip

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/pluginconfig"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

const commandTimeout = 15 * time.Second

// Entry describes one configured clipboard.
type Entry struct {
	Name      string `json:"name"`
	Clipboard string `json:"clipboard"`
	Read      string `json:"read"`
	Write     string `json:"write"`
}

// Config is the clip plugin's configuration, loaded from clip.conf.json.
type Config struct {
	Clipboards []Entry `json:"clipboards"`
}

func applyDefaults(c *Config) {
	if len(c.Clipboards) == 0 {
		c.Clipboards = []Entry{{
			Name:      "Clipboard",
			Clipboard: "clipboard",
			Read:      `xclip -selection "{clipboard}" -o`,
			Write:     `xclip -selection "{clipboard}" -i`,
		}}
	}
}

// listItem is one clip.list response entry.
type listItem struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Readable  bool   `json:"readable"`
	Writeable bool   `json:"writeable"`
}

type handler struct {
	index map[string]Entry
	list  []listItem
}

// NewFactory returns a plugin.Factory backed by store, the live
// configuration for the "clip" mark.
func NewFactory(store *pluginconfig.Store) plugin.Factory {
	return func(deps plugin.Deps) plugin.Handler {
		var cfg Config
		if store != nil {
			if err := store.Unmarshal(deps.Device.UIN, &cfg); err != nil {
				logger.Warn("clip: using defaults, config unmarshal failed", logger.Plugin("clip"), logger.PeerUIN(deps.Device.UIN), logger.Err(err))
			}
		}
		applyDefaults(&cfg)
		return buildHandler(cfg)
	}
}

func buildHandler(cfg Config) *handler {
	h := &handler{index: make(map[string]Entry, len(cfg.Clipboards))}
	for i, entry := range cfg.Clipboards {
		key := strconv.Itoa(i)
		h.index[key] = entry
		h.list = append(h.list, listItem{
			Key:       key,
			Name:      entry.Name,
			Readable:  entry.Read != "",
			Writeable: entry.Write != "",
		})
	}
	return h
}

func (h *handler) Handle(req *rpc.Request) plugin.Outcome {
	switch req.Method {
	case "list":
		return plugin.ContinueResult(req.ID, h.list)
	case "read":
		return h.handleRead(req)
	case "write":
		return h.handleWrite(req)
	default:
		return plugin.ContinueError(req.ID, rpc.NewError(rpc.CodeMethodNotFound, "unknown method: "+req.Method))
	}
}

type clipboardParams struct {
	Clipboard string `json:"clipboard"`
	Text      string `json:"text"`
}

func (h *handler) handleRead(req *rpc.Request) plugin.Outcome {
	var params clipboardParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}

	entry, ok := h.index[params.Clipboard]
	if !ok {
		return plugin.ContinueResult(req.ID, map[string]any{"code": 1, "message": "No such clipboard"})
	}
	cmd := strings.ReplaceAll(entry.Read, "{clipboard}", entry.Clipboard)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	logger.Info("clip: reading clipboard", logger.Plugin("clip"), "command", cmd)
	out, err := exec.CommandContext(ctx, "sh", "-c", cmd).Output()
	if err != nil {
		return plugin.ContinueResult(req.ID, map[string]any{"code": 2, "message": "Error: " + err.Error()})
	}
	return plugin.ContinueResult(req.ID, map[string]any{"code": 0, "text": string(out)})
}

func (h *handler) handleWrite(req *rpc.Request) plugin.Outcome {
	var params clipboardParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}

	entry, ok := h.index[params.Clipboard]
	if !ok {
		return plugin.ContinueResult(req.ID, map[string]any{"code": 1, "message": "No such clipboard"})
	}
	cmd := strings.ReplaceAll(entry.Write, "{clipboard}", entry.Clipboard)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	logger.Info("clip: writing clipboard", logger.Plugin("clip"), "command", cmd)
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Stdin = bytes.NewReader([]byte(params.Text))
	if err := c.Run(); err != nil {
		return plugin.ContinueResult(req.ID, map[string]any{"code": 2, "message": "Error: " + err.Error()})
	}
	return plugin.ContinueResult(req.ID, map[string]any{"code": 0, "message": "OK"})
}
