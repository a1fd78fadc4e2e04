package commands

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcnnt/dcnntd/internal/config"
	"github.com/dcnnt/dcnntd/internal/logger"
	"github.com/dcnnt/dcnntd/internal/server"
)

// pairingTimeout bounds how long the responder waits for a phone to
// complete the code exchange before giving up (spec §6: exit 1 on
// SIGINT or timeout).
const pairingTimeout = 5 * time.Minute

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair a new mobile client",
	Long: `Generate a one-time 6-digit pairing code and wait for a phone on the
same network to complete the password exchange.

Exits 0 once a device successfully pairs, or 1 on SIGINT or timeout.`,
	RunE: runPair,
}

func runPair(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad("", GetConfigDir())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	code, err := generatePairingCode()
	if err != nil {
		return fmt.Errorf("failed to generate pairing code: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pairingTimeout)
	defer cancel()

	app, err := server.New(ctx, cfg, code)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer app.Close()

	fmt.Println("Pairing code (enter this on the phone):")
	fmt.Printf("\n    %s\n\n", code)
	fmt.Printf("Waiting up to %s for a device to pair. Press Ctrl+C to cancel.\n", pairingTimeout)

	serverDone := make(chan error, 1)
	go func() { serverDone <- app.Serve(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-app.Pairing().Done():
		cancel()
		<-serverDone
		if uin, ok := app.Pairing().PairedUIN(); ok {
			fmt.Printf("Paired with device uin=%d\n", uin)
			return nil
		}
		return fmt.Errorf("pairing failed")
	case <-sigChan:
		logger.Info("pairing canceled")
		cancel()
		<-serverDone
		return fmt.Errorf("pairing canceled")
	case <-ctx.Done():
		<-serverDone
		return fmt.Errorf("pairing timed out")
	}
}

// generatePairingCode returns a random 6-digit code, zero-padded.
func generatePairingCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
