// Command opensentineld runs the honeypot as a foreground daemon. It has
// no command-line flags: a termination signal triggers graceful
// shutdown.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opensentinel/sentinel/base/datadir"
	baselog "github.com/opensentinel/sentinel/base/log"
	"github.com/opensentinel/sentinel/base/rlimit"
	"github.com/opensentinel/sentinel/sentinel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "opensentineld:", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir, err := datadir.Resolve()
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}

	logger, err := baselog.Setup(dataDir, baselog.InfoLevel)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer logger.Close()

	if limit, err := rlimit.Raise(); err != nil {
		logger.Warn("failed to raise file descriptor limit", "err", err)
	} else {
		logger.Info("file descriptor limit set", "limit", limit)
	}

	stack := sentinel.New(dataDir)
	if err := stack.Start(); err != nil {
		return fmt.Errorf("start sentinel stack: %w", err)
	}
	logger.Info("opensentinel started", "data_dir", dataDir)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh

	logger.Info("shutting down")
	if !stack.Stop() {
		return fmt.Errorf("stack did not shut down cleanly")
	}
	return nil
}
