// fitview counts sit-ups, squats and push-ups from a camera or a remote
// landmark stream and serves the live count over HTTP and websockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/fitview/internal/config"
	"github.com/teslashibe/fitview/internal/log"
	"github.com/teslashibe/fitview/pkg/app"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	exercise := flag.String("exercise", "", "Initial exercise: situps, squats, pushups")
	source := flag.String("source", "", "Frame source: camera or remote")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	capture := flag.Bool("capture", false, "Start capturing immediately")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Init("info", "")
		log.Error("configuration error", "err", err)
		os.Exit(1)
	}

	if *debug {
		cfg.Log.Level = "debug"
	}
	if *exercise != "" {
		cfg.Exercise = *exercise
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log.Init(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, *capture); err != nil {
		log.Error("fitview exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, capture bool) error {
	a, err := app.New(cfg, app.WithLogger(log.L()))
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := a.Init(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if capture {
		if err := a.StartCapture(); err != nil {
			log.Warn("capture not started", "err", err)
		}
	}
	return a.Run(ctx)
}
