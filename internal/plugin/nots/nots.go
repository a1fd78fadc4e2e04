// Package nots implements the "nots" plugin tag (C10): forward posted
// notifications to a configured notify-send-style command, optionally
// saving a raw icon frame first. Grounded on
// original_source/dcnnt/plugins/notifications.py's NotificationsPlugin.
package nots

import (
	"os"
	"os/exec"
	"strings"

	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/plugin/filexfer"
	"github.com/dcnnt/dcnntd/internal/pluginconfig"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// Config is the nots plugin's configuration, loaded from nots.conf.json.
type Config struct {
	IconPath string `json:"icon_path"`
	Cmd      string `json:"cmd"`
}

func applyDefaults(c *Config) {
	if c.IconPath == "" {
		c.IconPath = "/tmp/dc-icon.png"
	}
	if c.Cmd == "" {
		c.Cmd = `notify-send -i '{icon}' '{title}' '{text}'`
	}
}

type handler struct {
	transport filexfer.Channel
	cfg       Config
}

// NewFactory returns a plugin.Factory backed by store, the live
// configuration for the "nots" mark.
func NewFactory(store *pluginconfig.Store) plugin.Factory {
	return func(deps plugin.Deps) plugin.Handler {
		h := &handler{transport: deps.Transport}
		if store != nil {
			if err := store.Unmarshal(deps.Device.UIN, &h.cfg); err != nil {
				logger.Warn("nots: using defaults, config unmarshal failed", logger.Plugin("nots"), logger.PeerUIN(deps.Device.UIN), logger.Err(err))
			}
		}
		applyDefaults(&h.cfg)
		return h
	}
}

type notificationParams struct {
	Event       string `json:"event"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	Package     string `json:"package"`
	PackageIcon bool   `json:"packageIcon"`
}

func (h *handler) Handle(req *rpc.Request) plugin.Outcome {
	if req.Method != "notification" {
		// Notifications are fire-and-forget; an unknown method is a silent
		// per-request abort rather than a protocol error (no reply is
		// expected for this plugin's only method anyway).
		return plugin.Abort("unknown method: " + req.Method)
	}

	var params notificationParams
	if err := rpc.UnmarshalParams(req, &params); err != nil {
		return plugin.Abort("notification: invalid params: " + err.Error())
	}
	if params.Event != "posted" {
		return plugin.Continue(nil)
	}

	if params.Title == "" {
		params.Title = "NULL"
	}

	if params.PackageIcon {
		icon, err := filexfer.ReadFrame(h.transport)
		if err != nil {
			return plugin.Kill("notification: failed to read icon frame: " + err.Error())
		}
		if h.cfg.IconPath != "" {
			if err := os.WriteFile(h.cfg.IconPath, icon, 0o644); err != nil {
				logger.Warn("nots: failed to write icon file", logger.Plugin("nots"), logger.Err(err))
			}
		}
	}

	if h.cfg.Cmd != "" {
		command := h.cfg.Cmd
		command = strings.ReplaceAll(command, "{icon}", h.cfg.IconPath)
		command = strings.ReplaceAll(command, "{title}", params.Title)
		command = strings.ReplaceAll(command, "{text}", params.Text)
		logger.Info("nots: executing notification command", logger.Plugin("nots"), "command", command)
		if err := exec.Command("sh", "-c", command).Start(); err != nil {
			logger.Warn("nots: notification command failed to start", logger.Plugin("nots"), logger.Err(err))
		}
	}

	return plugin.Continue(nil)
}
