package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"rover-navigation/rover_nav"
)

func main() {
	var configPath string
	var envFile string
	var detectorAddr string
	var serialPath string
	var modeOverride string
	var logLevel string
	var sim bool
	flag.StringVar(&configPath, "config", "config.json", "Path to JSON config.")
	flag.StringVar(&envFile, "env-file", ".env", "Optional .env file with ROVER_* overrides.")
	flag.StringVar(&detectorAddr, "detector-addr", "", "Override detection feed UDP listen addr (host:port).")
	flag.StringVar(&serialPath, "serial", "", "Override motor controller serial device.")
	flag.StringVar(&modeOverride, "mode", "", "Initial controller mode (TURNING, APPROACHING, IDLE).")
	flag.StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error).")
	flag.BoolVar(&sim, "sim", false, "Run against the built-in simulator instead of hardware.")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load env file %q: %v", envFile, err)
	}

	cfg, err := rover_nav.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("load config %q: %v", configPath, err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("apply environment: %v", err)
	}

	if detectorAddr != "" {
		cfg.Detector.UDPAddr = detectorAddr
	}
	if serialPath != "" {
		cfg.Actuator.SerialPath = serialPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if sim {
		cfg.Sim.Enabled = true
	}
	if modeOverride != "" {
		mode, err := rover_nav.ParseMode(modeOverride)
		if err != nil {
			log.Fatalf("invalid mode %q: %v", modeOverride, err)
		}
		cfg.Controller.InitialMode = mode
	}

	logger := NewLogger(parseLevel(cfg.Log.Level), cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rover_nav.RunLive(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("controller stopped")
			return
		}
		logger.Error("controller terminated", "err", err)
		stop()
		os.Exit(1)
	}
}
