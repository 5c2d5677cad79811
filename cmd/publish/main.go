package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tunogya/etna/pkg/config"
	"github.com/tunogya/etna/pkg/data"
	"github.com/tunogya/etna/pkg/logging"
	"github.com/tunogya/etna/pkg/queue/nats"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	csvPath := flag.String("csv", "", "CSV file to publish (defaults to source.csvPath)")
	batchSize := flag.Int("batch", 500, "bars per message")
	delay := flag.Duration("delay", 0, "pause between messages")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	if *csvPath == "" {
		*csvPath = cfg.Source.CSVPath
	}
	if *batchSize < 1 {
		*batchSize = 1
	}

	loc, err := time.LoadLocation(cfg.Source.Location)
	if err != nil {
		logger.Fatal().Err(err).Str("location", cfg.Source.Location).Msg("invalid location")
	}

	provider := data.NewCSVProvider(*csvPath, loc)
	bars, err := provider.Load()
	if err != nil {
		logger.Fatal().Err(err).Str("path", *csvPath).Msg("failed to load bars")
	}
	if n := provider.Skipped(); n > 0 {
		logger.Warn().Int("skipped", n).Msg("unparseable records skipped")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	natsCfg := nats.DefaultConfig()
	natsCfg.URL = cfg.Source.NATSURL
	natsCfg.StreamName = cfg.Source.Stream
	client, err := nats.NewClient(natsCfg, nats.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer client.Close()

	if err := client.CreateStream(ctx, []string{nats.SubjectBars}); err != nil {
		logger.Fatal().Err(err).Msg("failed to create stream")
	}

	published := 0
	for start := 0; start < len(bars); start += *batchSize {
		end := min(start+*batchSize, len(bars))
		if err := nats.PublishBars(ctx, client, bars[start:end]); err != nil {
			logger.Error().Err(err).Int("published", published).Msg("publish failed")
			return
		}
		published += end - start

		if *delay > 0 {
			select {
			case <-time.After(*delay):
			case <-ctx.Done():
				logger.Info().Int("published", published).Msg("interrupted")
				return
			}
		}
	}

	logger.Info().Int("published", published).Str("subject", nats.SubjectBars).Msg("bars published")
}
