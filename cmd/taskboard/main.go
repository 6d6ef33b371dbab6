package main

import (
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"taskboard"
)

func main() {
	cfg, err := taskboard.LoadConfig(os.Args[1:], nil)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		taskboard.DefaultConfig().NewLogger(os.Stderr).Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	logger := cfg.NewLogger(os.Stderr)

	s, err := taskboard.NewApp(cfg, logger)
	if err != nil {
		logger.Error("create server", "error", err)
		os.Exit(1)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info("shutting down", "signal", sig.String())
		_ = s.Close()
	}()

	logger.Info("task board backend starting",
		"addr", cfg.Addr, "root", cfg.Root, "tasks", cfg.TaskFilePath())

	if err := s.ListenAndServe(cfg.Addr); !errors.Is(err, taskboard.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
