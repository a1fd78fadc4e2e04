// Package server wires the daemon's components (C2-C10) into a running
// process: the device registry, the UDP discovery responder, the TCP
// session server, and every plugin factory, then runs the two listener
// tasks as independent goroutines with no shared event loop. Grounded on
// the teacher's cmd/dfs/commands/start.go runStart/rt.Serve shutdown
// pattern, adapted from dittofs's single HTTP+gRPC runtime to this
// daemon's UDP+TCP pair.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dcnnt/dcnntd/internal/config"
	"github.com/dcnnt/dcnntd/internal/device"
	"github.com/dcnnt/dcnntd/internal/discovery"
	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/metrics"
	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/plugin/clip"
	"github.com/dcnnt/dcnntd/internal/plugin/file"
	"github.com/dcnnt/dcnntd/internal/plugin/nots"
	"github.com/dcnnt/dcnntd/internal/plugin/open"
	"github.com/dcnnt/dcnntd/internal/plugin/rcmd"
	"github.com/dcnnt/dcnntd/internal/plugin/sync"
	"github.com/dcnnt/dcnntd/internal/pluginconfig"
	"github.com/dcnnt/dcnntd/internal/registry"
	"github.com/dcnnt/dcnntd/internal/session"
)

// pluginMarks lists every C10 plugin tag the daemon registers, in the
// table order of spec §4.7.
var pluginMarks = []string{"file", "open", "rcmd", "nots", "clip", "sync"}

// App bundles every long-lived component the daemon needs to run. Build
// one with New, then call Serve.
type App struct {
	cfg       *config.Config
	registry  *registry.Registry
	metrics   *metrics.Metrics
	responder *discovery.Responder
	pairing   *discovery.Pairing
	session   *session.Server
	listener  net.Listener
	stores    []*pluginconfig.Store
}

// New loads the device registry and every plugin's configuration store,
// builds the plugin registry, and binds both the UDP discovery socket and
// the TCP listener, so callers can read ephemeral ports (UDPAddr, TCPAddr)
// before Serve starts.
func New(ctx context.Context, cfg *config.Config, pairingCode string) (*App, error) {
	server := &device.Device{UIN: cfg.Server.UIN, Name: cfg.Server.Name, Password: cfg.Server.Password}

	reg := registry.New(cfg.Devices.Directory, server)
	if err := reg.Load(ctx); err != nil {
		return nil, fmt.Errorf("server: load registry: %w", err)
	}

	m := metrics.New()

	plugins := plugin.NewRegistry()
	stores, err := registerPlugins(cfg.Plugins.Directory, plugins)
	if err != nil {
		return nil, err
	}

	pairing := discovery.NewPairing(pairingCode)
	udpAddr := net.JoinHostPort(cfg.Network.BindAddress, strconv.Itoa(cfg.Network.Port))

	responder, err := discovery.New(udpAddr, reg, server, pairing, m)
	if err != nil {
		return nil, fmt.Errorf("server: start discovery responder: %w", err)
	}

	sessionServer := session.New(reg, server, plugins, m, int(cfg.Limits.MaxFrameBytes), cfg.Limits.IdleTimeout)

	ln, err := net.Listen("tcp4", net.JoinHostPort(cfg.Network.BindAddress, strconv.Itoa(cfg.Network.Port)))
	if err != nil {
		responder.Close()
		return nil, fmt.Errorf("server: listen tcp: %w", err)
	}

	return &App{
		cfg:       cfg,
		registry:  reg,
		metrics:   m,
		responder: responder,
		pairing:   pairing,
		session:   sessionServer,
		listener:  ln,
		stores:    stores,
	}, nil
}

// UDPAddr returns the discovery responder's bound local address.
func (a *App) UDPAddr() net.Addr { return a.responder.Addr() }

// TCPAddr returns the session server's bound local address.
func (a *App) TCPAddr() net.Addr { return a.listener.Addr() }

// Registry returns the device registry, used by the pair CLI command to
// look up a freshly paired device after Pairing().Done() fires.
func (a *App) Registry() *registry.Registry { return a.registry }

// registerPlugins loads every plugin mark's configuration store and
// registers its factory, returning the stores so Close can stop their
// background watchers.
func registerPlugins(pluginsDir string, reg *plugin.Registry) ([]*pluginconfig.Store, error) {
	stores := make([]*pluginconfig.Store, 0, len(pluginMarks))
	for _, mark := range pluginMarks {
		store, err := pluginconfig.Load(pluginsDir, mark)
		if err != nil {
			return nil, fmt.Errorf("server: load %s plugin config: %w", mark, err)
		}
		stores = append(stores, store)

		switch mark {
		case "file":
			reg.Register(mark, file.NewFactory(store))
		case "open":
			reg.Register(mark, open.NewFactory(store))
		case "rcmd":
			reg.Register(mark, rcmd.NewFactory(store))
		case "nots":
			reg.Register(mark, nots.NewFactory(store))
		case "clip":
			reg.Register(mark, clip.NewFactory(store))
		case "sync":
			reg.Register(mark, sync.NewFactory(store))
		}
	}
	return stores, nil
}

// Pairing returns the discovery pairing state machine so callers (the
// pair CLI command) can observe its completion.
func (a *App) Pairing() *discovery.Pairing { return a.pairing }

// Serve runs the UDP discovery responder and the TCP session server until
// ctx is canceled, plus the optional metrics HTTP listener. It returns the
// first error from any of the three, or nil on clean shutdown.
func (a *App) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.responder.Serve(ctx); err != nil {
			errs <- fmt.Errorf("discovery: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.session.Serve(ctx, a.listener); err != nil {
			errs <- fmt.Errorf("session: %w", err)
		}
	}()

	var metricsServer *http.Server
	if a.cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:    net.JoinHostPort(a.cfg.Metrics.BindAddress, strconv.Itoa(a.cfg.Metrics.Port)),
			Handler: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errs <- fmt.Errorf("metrics: %w", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = metricsServer.Close()
		}()
	}

	logger.InfoCtx(ctx, "server: listening", logger.BindAddr(a.listener.Addr().String()))

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources Serve does not own the lifecycle of: the
// plugin config stores' background watchers.
func (a *App) Close() error {
	for _, store := range a.stores {
		_ = store.Close()
	}
	return nil
}
