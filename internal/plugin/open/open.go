// Package open implements the "open" plugin tag (C10): receive a file and
// open it with a configured command, or open a URL. Grounded on
// original_source/dcnnt/plugins/opener.py's OpenerPlugin.
package open

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/plugin/filexfer"
	"github.com/dcnnt/dcnntd/internal/pluginconfig"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// Config is the open plugin's configuration, loaded from open.conf.json.
type Config struct {
	File struct {
		DownloadDirectory string `json:"download_directory"`
		DefaultCmd        string `json:"default_cmd"`
	} `json:"file"`
	Link struct {
		DefaultCmd string `json:"default_cmd"`
	} `json:"link"`
}

func applyDefaults(c *Config) {
	if c.File.DownloadDirectory == "" {
		c.File.DownloadDirectory = "/tmp/dcnnt/to_open"
	}
	if c.File.DefaultCmd == "" {
		c.File.DefaultCmd = `xdg-open "{path}"`
	}
	if c.Link.DefaultCmd == "" {
		c.Link.DefaultCmd = `xdg-open "{url}"`
	}
}

type handler struct {
	transport filexfer.Channel
	cfg       Config
}

// NewFactory returns a plugin.Factory backed by store, the live
// configuration for the "open" mark.
func NewFactory(store *pluginconfig.Store) plugin.Factory {
	return func(deps plugin.Deps) plugin.Handler {
		h := &handler{transport: deps.Transport}
		if store != nil {
			if err := store.Unmarshal(deps.Device.UIN, &h.cfg); err != nil {
				logger.Warn("open: using defaults, config unmarshal failed", logger.Plugin("open"), logger.PeerUIN(deps.Device.UIN), logger.Err(err))
			}
		}
		applyDefaults(&h.cfg)
		return h
	}
}

func (h *handler) Handle(req *rpc.Request) plugin.Outcome {
	switch req.Method {
	case "open_file":
		return h.handleOpenFile(req)
	case "open_link":
		return h.handleOpenLink(req)
	default:
		return plugin.ContinueError(req.ID, rpc.NewError(rpc.CodeMethodNotFound, "unknown method: "+req.Method))
	}
}

type openFileParams struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (h *handler) handleOpenFile(req *rpc.Request) plugin.Outcome {
	var params openFileParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}
	if err := os.MkdirAll(h.cfg.File.DownloadDirectory, 0o755); err != nil {
		return plugin.Kill("open: create download directory: " + err.Error())
	}

	dest := filepath.Join(h.cfg.File.DownloadDirectory, filepath.Base(params.Name))
	outcome := filexfer.Receive(h.transport, req.ID, dest, params.Size)
	if outcome.Kind() == plugin.KindContinue {
		command := strings.ReplaceAll(h.cfg.File.DefaultCmd, "{path}", dest)
		runCommand(command)
	}
	return outcome
}

type openLinkParams struct {
	Link string `json:"link"`
}

func (h *handler) handleOpenLink(req *rpc.Request) plugin.Outcome {
	var params openLinkParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.ContinueError(req.ID, err)
	}
	if params.Link == "" {
		return plugin.Abort("open_link: no link param in request")
	}

	// Reply before spawning the handler command, per spec §4.7: send
	// directly rather than through the dispatcher's post-Handle path.
	resp, err := rpc.NewResultResponse(req.ID, map[string]any{"code": 0, "message": "OK"})
	if err != nil {
		return plugin.Kill("open_link: marshal response: " + err.Error())
	}
	if err := h.transport.SendResponse(resp); err != nil {
		return plugin.Kill("open_link: send response: " + err.Error())
	}

	command := strings.ReplaceAll(h.cfg.Link.DefaultCmd, "{url}", params.Link)
	runCommand(command)
	return plugin.Continue(nil)
}

func runCommand(command string) {
	logger.Info("open: executing handler command", logger.Plugin("open"), "command", command)
	if err := exec.Command("sh", "-c", command).Start(); err != nil {
		logger.Warn("open: handler command failed to start", logger.Plugin("open"), logger.Err(err))
	}
}
