package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/tapelight/internal/config"
	"github.com/coreman2200/tapelight/internal/engine"
	"github.com/coreman2200/tapelight/internal/led"
	"github.com/coreman2200/tapelight/internal/osc"
)

func main() {
	// ---- Flags (config.yaml can override most) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		fps        = flag.Float64("fps", 0, "override frames per second")
		workers    = flag.Int("workers", 0, "override compute worker count")
		oscAddr    = flag.String("osc", "", "override control listen address")
		preview    = flag.String("preview", "", "override preview listen address")
		output     = flag.String("output", "sim", "output: spi | sim")
		debug      = flag.Bool("debug", false, "debug logging + overlap checks")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// ---- Load config.yaml (optional; demo topology otherwise) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using demo topology")
		cfg = config.Default()
	}
	if *fps > 0 {
		cfg.Engine.FPS = *fps
	}
	if *workers > 0 {
		cfg.Engine.Workers = *workers
	}
	if *oscAddr != "" {
		cfg.OSC.Listen = *oscAddr
	}
	if *preview != "" {
		cfg.Preview.Listen = *preview
	}
	if *debug {
		cfg.Engine.DebugOverlap = true
	}

	// ---- Build engine ----
	eng, err := engine.Build(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("engine build failed")
	}
	defer eng.Close()

	// ---- Output sinks ----
	switch *output {
	case "spi":
		for _, d := range cfg.Devices {
			sink, err := led.NewSPISink(d.ID, d.Addr, d.LEDCount)
			if err != nil {
				log.Error().Err(err).Str("device", d.ID).Msg("spi output unavailable, skipping")
				continue
			}
			eng.AttachSink(sink, 2)
		}
	case "sim":
		log.Info().Msg("running headless (sim output)")
	default:
		log.Fatal().Str("output", *output).Msg("unknown output")
	}
	if cfg.Preview.Listen != "" {
		eng.AttachSink(led.NewWSSink(cfg.Preview.Listen, eng.Status, log.Logger), 2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Control listener ----
	srv, err := osc.NewServer(cfg.OSC.Listen, eng, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.OSC.Listen).Msg("control listener failed")
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("control listener exited")
		}
	}()

	// ---- Run ----
	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("render loop failed")
	}
	log.Info().Msg("shutdown complete")
}
