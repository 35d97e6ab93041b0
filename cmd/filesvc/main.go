package main

import (
	"context"
	_ "embed"
	"flag"
	"os"
	"strings"
	"time"

	"filesvc/pkg/config"
	"filesvc/pkg/log"
	"filesvc/pkg/manager"
	"filesvc/pkg/metadata"
	"filesvc/pkg/metrics"
	"filesvc/pkg/server"
	"filesvc/pkg/store/disk"
)

const openTimeout = 30 * time.Second

//go:embed VERSION
var Version string

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the environment")
	addr := flag.String("addr", "", "Listen address, overrides LISTEN_ADDR")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	if err := log.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("Invalid logging configuration")
	}
	if *debug {
		log.SetDebugMode()
	}

	files, err := disk.New(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Str("upload_dir", cfg.UploadDir).Msg("Failed to create upload directory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	records, err := metadata.Open(ctx, metadata.Options{
		Driver: cfg.DBDriver,
		DSN:    cfg.DataSource(),
	})
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to open metadata store")
	}

	collectors := metrics.New()
	mgr := manager.New(files, records, manager.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Metrics:        collectors,
	})

	srv := server.New(mgr, server.Options{
		Metrics:         collectors,
		Database:        records,
		UIDir:           cfg.UIDir,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})

	log.Info().
		Str("version", strings.TrimSpace(Version)).
		Str("driver", records.Driver()).
		Str("upload_dir", cfg.UploadDir).
		Msg("File service initialized")

	runErr := srv.Start(cfg.ListenAddr)

	if err := records.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close metadata store")
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Server failed")
	}
}
