// Command vidflowd is the download supervisor daemon: it boots the
// Startup Orchestrator, serves the Command Surface, and blocks until a
// shutdown signal arrives.
package main

import (
	"flag"
	"fmt"
	"os"

	"vidflow/internal/config"
	"vidflow/internal/logger"
	"vidflow/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "path to vidflow.toml (optional)")
	flag.Parse()

	cfg := config.Load(*configPath)

	log, err := logger.New(cfg.DataDir, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidflowd: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	log.Info("starting vidflowd", "listen_addr", cfg.ListenAddr, "data_dir", cfg.DataDir)

	s := supervisor.New(cfg, log)
	if err := s.Run(); err != nil {
		log.Error("vidflowd exited with error", "error", err)
		os.Exit(1)
	}
}
