package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tunogya/etna/pkg/data"
	"github.com/tunogya/etna/pkg/logging"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "Trading symbol")
	interval := flag.String("interval", "1m", "Kline interval (1m, 5m, 1h, 1d, 1w, etc.)")
	limit := flag.Int("limit", 1000, "Number of klines to fetch (max 1000)")
	location := flag.String("location", "UTC", "Time zone for bar day and time")
	output := flag.String("output", "", "Output CSV file path")
	flag.Parse()

	logger := logging.New("info", true)

	if *output == "" {
		*output = fmt.Sprintf("data/%s_%s.csv", *symbol, *interval)
	}

	loc, err := time.LoadLocation(*location)
	if err != nil {
		logger.Fatal().Err(err).Str("location", *location).Msg("invalid location")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger.Info().Str("symbol", *symbol).Str("interval", *interval).Msg("fetching klines")
	bars, err := data.FetchKlines(ctx, &http.Client{Timeout: 30 * time.Second}, data.BinanceBaseURL,
		data.KlineRequest{Symbol: *symbol, Interval: *interval, Limit: *limit}, loc)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to fetch klines")
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create output directory")
	}
	file, err := os.Create(*output)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create output file")
	}
	defer file.Close()

	if err := data.WriteBars(file, bars); err != nil {
		logger.Fatal().Err(err).Msg("failed to write bars")
	}
	logger.Info().Int("bars", len(bars)).Str("path", *output).Msg("saved")
}
