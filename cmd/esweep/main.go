package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tkjaer/esweep/internal/config"
	"github.com/tkjaer/esweep/internal/runner"
)

func main() {
	args, err := config.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logFile, err := config.SetupLogging(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	slog.Debug("Starting sweep",
		"network", args.Network,
		"workers", args.Workers,
		"timeout", args.Timeout,
		"count", args.Count,
	)

	r := runner.NewRunner(args)

	// Set up signal handling for Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Run in a goroutine so we can handle signals
	done := make(chan error)
	go func() {
		done <- r.Run()
	}()

	select {
	case err = <-done:
	case <-sigChan:
		// The sweep in progress is allowed to finish
		slog.Debug("Received interrupt signal, stopping after current sweep...")
		r.Stop()
		err = <-done
	}
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	slog.Debug("Sweep completed")
}
