// Package rcmd implements the "rcmd" plugin tag (C10): an operator-defined
// menu of remote shell commands, enumerated with a stable index and
// executed by request. Grounded on
// original_source/dcnnt/plugins/remote_commands.py's RemoteCommandsPlugin.
package rcmd

import (
	"hash/fnv"
	"os/exec"
	"strconv"

	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/pluginconfig"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// MenuEntry describes one configured remote command.
type MenuEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Method      string `json:"method"`
	Cmd         string `json:"cmd"`
}

// Config is the rcmd plugin's configuration, loaded from rcmd.conf.json.
type Config struct {
	Menu []MenuEntry `json:"menu"`
}

// menuItem is one rcmd.list response entry.
type menuItem struct {
	Index       string `json:"index,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type handler struct {
	commands map[string]MenuEntry
	index    []menuItem
}

// NewFactory returns a plugin.Factory backed by store, the live
// configuration for the "rcmd" mark.
func NewFactory(store *pluginconfig.Store) plugin.Factory {
	return func(deps plugin.Deps) plugin.Handler {
		var cfg Config
		if store != nil {
			if err := store.Unmarshal(deps.Device.UIN, &cfg); err != nil {
				logger.Warn("rcmd: using empty menu, config unmarshal failed", logger.Plugin("rcmd"), logger.PeerUIN(deps.Device.UIN), logger.Err(err))
			}
		}
		return buildHandler(cfg)
	}
}

func buildHandler(cfg Config) *handler {
	h := &handler{commands: make(map[string]MenuEntry)}
	for _, entry := range cfg.Menu {
		var id string
		if entry.Method != "" && entry.Cmd != "" {
			id = commandIndex(entry.Cmd, entry.Method)
			h.commands[id] = entry
		}
		h.index = append(h.index, menuItem{Index: id, Name: entry.Name, Description: entry.Description})
	}
	return h
}

// commandIndex computes a stable identifier for a configured command,
// FNV-1a over cmd+method in place of the source's built-in string hash().
func commandIndex(cmd, method string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(cmd + method))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}

func (h *handler) Handle(req *rpc.Request) plugin.Outcome {
	switch req.Method {
	case "list":
		return plugin.ContinueResult(req.ID, h.index)
	case "exec":
		return h.handleExec(req)
	default:
		return plugin.ContinueError(req.ID, rpc.NewError(rpc.CodeMethodNotFound, "unknown method: "+req.Method))
	}
}

type execParams struct {
	Index string `json:"index"`
}

func (h *handler) handleExec(req *rpc.Request) plugin.Outcome {
	var params execParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}

	entry, ok := h.commands[params.Index]
	if !ok {
		return plugin.ContinueResult(req.ID, map[string]any{"result": false, "message": "No such command"})
	}

	if entry.Method != "shell" {
		return plugin.ContinueResult(req.ID, map[string]any{"result": false, "message": "No such method"})
	}

	logger.Info("rcmd: executing shell command", logger.Plugin("rcmd"), "command", entry.Cmd)
	if err := exec.Command("sh", "-c", entry.Cmd).Run(); err != nil {
		logger.Warn("rcmd: command failed", logger.Plugin("rcmd"), logger.Err(err))
		return plugin.ContinueResult(req.ID, map[string]any{"result": false, "message": "Failed"})
	}
	return plugin.ContinueResult(req.ID, map[string]any{"result": true, "message": "OK"})
}
