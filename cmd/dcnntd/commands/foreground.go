package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcnnt/dcnntd/internal/config"
	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/metrics"
	"github.com/dcnnt/dcnntd/internal/server"
)

var foregroundPidFile string

var foregroundCmd = &cobra.Command{
	Use:   "foreground",
	Short: "Run the server in the foreground",
	Long: `Run dcnntd attached to the current terminal, without forking into the
background. This is the mode "dcnntd start" uses internally once it forks;
invoke it directly when running under a process supervisor or for
debugging.`,
	RunE: runForeground,
}

func init() {
	foregroundCmd.Flags().StringVar(&foregroundPidFile, "pid-file", "", "Path to PID file")
}

func runForeground(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad("", GetConfigDir())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := server.New(ctx, cfg, "")
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer app.Close()

	if foregroundPidFile != "" {
		if err := os.WriteFile(foregroundPidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(foregroundPidFile) }()
	}

	logger.Info("dcnntd starting", "uin", cfg.Server.UIN, "name", cfg.Server.Name,
		"bind_address", cfg.Network.BindAddress, "port", cfg.Network.Port)

	serverDone := make(chan error, 1)
	go func() { serverDone <- app.Serve(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", logger.Err(err))
			return err
		}
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", logger.Err(err))
			return err
		}
	}

	logger.Info("dcnntd stopped")
	return nil
}
