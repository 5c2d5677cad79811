package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tunogya/etna/pkg/config"
	"github.com/tunogya/etna/pkg/data"
	"github.com/tunogya/etna/pkg/feature"
	"github.com/tunogya/etna/pkg/logging"
	"github.com/tunogya/etna/pkg/metrics"
	"github.com/tunogya/etna/pkg/model"
	"github.com/tunogya/etna/pkg/pipeline"
	"github.com/tunogya/etna/pkg/queue/nats"
	"github.com/tunogya/etna/pkg/sink"
	"github.com/tunogya/etna/pkg/store"
	"github.com/tunogya/etna/pkg/store/clickhouse"
	"github.com/tunogya/etna/pkg/store/duckdb"
	"github.com/tunogya/etna/pkg/store/memory"
	"github.com/tunogya/etna/pkg/store/milvus"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("exporter stopped with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(registry)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
	}

	engine, err := feature.NewEngine(cfg.FeatureConfig())
	if err != nil {
		return err
	}
	session, err := cfg.SessionFilter()
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithSession(session),
		pipeline.WithPrintRows(cfg.Features.PrintRows),
		pipeline.WithLogger(logger),
		pipeline.WithBarObserver(m),
	}

	if cfg.Persistence.Enabled {
		manager, err := openSink(ctx, cfg, logger, m)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithSink(manager))
	} else {
		logger.Info().Msg("persistence disabled")
	}

	exp := pipeline.NewExporter(engine, opts...)

	source, err := openSource(cfg, logger)
	if err != nil {
		// the sink may already hold an open connection
		return errors.Join(err, exp.Close(context.Background()))
	}
	defer source.Close()

	bars, err := source.Subscribe(ctx)
	if err != nil {
		return errors.Join(err, exp.Close(context.Background()))
	}
	bars = data.FillAverages(ctx, bars, data.NewAverager(cfg.Source.FastPeriod, cfg.Source.SlowPeriod))

	logger.Info().
		Str("source", cfg.Source.Kind).
		Str("backend", cfg.Persistence.Backend).
		Int("required_bars", engine.RequiredBars()).
		Msg("exporter started")

	idle := time.NewTicker(cfg.IdleInterval())
	defer idle.Stop()

loop:
	for {
		select {
		case bar, ok := <-bars:
			if !ok {
				break loop
			}
			exp.OnBar(ctx, bar)
		case <-idle.C:
			if err := exp.Idle(ctx); err != nil {
				logger.Warn().Err(err).Msg("idle flush failed")
			}
		case <-ctx.Done():
			break loop
		}
	}

	logger.Info().Msg("shutting down exporter")

	// shutdown must finish even after the signal cancelled ctx
	return exp.Close(context.Background())
}

func openSink(ctx context.Context, cfg config.Config, logger zerolog.Logger, obs sink.Observer) (*sink.Manager[model.FeatureRecord], error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	writer, err := store.NewWriter(backend, model.FeatureShape, cfg.WriterConfig(), store.WithLogger(logger))
	if err != nil {
		backend.Close()
		return nil, err
	}

	manager, err := sink.NewManager(ctx, writer, cfg.ControllerConfig(),
		sink.WithLogger(logger),
		sink.WithObserver(obs),
	)
	if err != nil {
		writer.Close()
		return nil, err
	}
	return manager, nil
}

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	p := cfg.Persistence
	switch p.Backend {
	case config.BackendDuckDB:
		return duckdb.NewBackend(ctx, p.Path)
	case config.BackendClickHouse:
		return clickhouse.NewBackend(ctx, p.DSN, clickhouse.WithOrderBy("day", "time"))
	case config.BackendMilvus:
		return milvus.NewBackend(ctx, p.Milvus)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: %w", p.Backend, config.ErrInvalidConfig)
	}
}

func openSource(cfg config.Config, logger zerolog.Logger) (data.BarStream, error) {
	s := cfg.Source
	switch s.Kind {
	case config.SourceCSV:
		loc, err := time.LoadLocation(s.Location)
		if err != nil {
			return nil, fmt.Errorf("invalid location %q: %w", s.Location, err)
		}
		return data.NewCSVProvider(s.CSVPath, loc), nil
	case config.SourceNATS:
		natsCfg := nats.DefaultConfig()
		natsCfg.URL = s.NATSURL
		natsCfg.StreamName = s.Stream
		client, err := nats.NewClient(natsCfg, nats.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return nats.NewBarSource(client, s.Consumer, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q: %w", s.Kind, config.ErrInvalidConfig)
	}
}
