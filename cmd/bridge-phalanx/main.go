package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/supervisor"
	"github.com/geph-official/bridge-phalanx/internal/telemetry"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-file>\n", os.Args[0])
		os.Exit(1)
	}

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading environment settings: %v\n", err)
		os.Exit(1)
	}
	log := telemetry.NewLogger(env.LogFormat, env.LogLevel)
	slog.SetDefault(log)

	cfg, err := config.LoadFile(os.Args[1])
	if err != nil {
		log.Error("loading config", "error", err)
		os.Exit(1)
	}

	// No signals, no network listener (spec.md §6): the process runs
	// until killed.
	if err := supervisor.Run(context.Background(), cfg, env, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}
