package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/tunogya/etna/pkg/model"
)

// CSVProvider streams bars from a CSV file with a header row. Bars are
// identified either by day (YYYYMMDD) and time (HHMMSS) columns or by an
// open_time column in epoch milliseconds, as written by the kline fetcher.
// fast_average and slow_average are optional.
type CSVProvider struct {
	filePath string
	location *time.Location
	bars     []model.BaseBar
	skipped  int
	loaded   bool
}

// NewCSVProvider creates a new CSV-based bar provider. Epoch timestamps
// are converted to day and time in loc (UTC when nil).
func NewCSVProvider(filePath string, loc *time.Location) *CSVProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVProvider{
		filePath: filePath,
		location: loc,
	}
}

// Load reads the file if not already loaded and returns all bars
func (p *CSVProvider) Load() ([]model.BaseBar, error) {
	if err := p.loadIfNeeded(); err != nil {
		return nil, err
	}
	return p.bars, nil
}

// Skipped returns the number of records that could not be parsed
func (p *CSVProvider) Skipped() int {
	return p.skipped
}

// Subscribe streams the file's bars in order
func (p *CSVProvider) Subscribe(ctx context.Context) (<-chan model.BaseBar, error) {
	if err := p.loadIfNeeded(); err != nil {
		return nil, err
	}
	return streamSlice(ctx, p.bars), nil
}

// Close is a no-op; the file is read in full on first use
func (p *CSVProvider) Close() error {
	return nil
}

func (p *CSVProvider) loadIfNeeded() error {
	if p.loaded {
		return nil
	}

	file, err := os.Open(p.filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	bars, skipped, err := ReadBars(file, p.location)
	if err != nil {
		return err
	}

	p.bars = bars
	p.skipped = skipped
	p.loaded = true
	return nil
}

// ReadBars parses CSV bars from r, skipping records that cannot be parsed
func ReadBars(r io.Reader, loc *time.Location) ([]model.BaseBar, int, error) {
	if loc == nil {
		loc = time.UTC
	}
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[col] = i
	}

	_, hasDay := colMap["day"]
	_, hasTime := colMap["time"]
	_, hasOpenTime := colMap["open_time"]
	if !(hasDay && hasTime) && !hasOpenTime {
		return nil, 0, fmt.Errorf("CSV header needs day and time, or open_time")
	}

	var bars []model.BaseBar
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read CSV record: %w", err)
		}

		bar, err := parseRecord(record, colMap, loc)
		if err != nil {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}

	return bars, skipped, nil
}

// parseRecord parses a CSV record into a BaseBar
func parseRecord(record []string, colMap map[string]int, loc *time.Location) (model.BaseBar, error) {
	getValue := func(name string) string {
		if idx, ok := colMap[name]; ok && idx < len(record) {
			return record[idx]
		}
		return ""
	}

	var bar model.BaseBar
	if _, ok := colMap["day"]; ok {
		day, err := strconv.ParseInt(getValue("day"), 10, 32)
		if err != nil {
			return bar, fmt.Errorf("invalid day: %w", err)
		}
		tod, err := strconv.ParseInt(getValue("time"), 10, 32)
		if err != nil {
			return bar, fmt.Errorf("invalid time: %w", err)
		}
		bar.Day, bar.Time = int32(day), int32(tod)
	} else {
		openTimeMs, err := strconv.ParseInt(getValue("open_time"), 10, 64)
		if err != nil {
			return bar, fmt.Errorf("invalid open_time: %w", err)
		}
		bar.Day, bar.Time = DayAndTime(time.UnixMilli(openTimeMs).In(loc))
	}

	fields := []struct {
		name     string
		dst      *float64
		optional bool
	}{
		{"open", &bar.Open, false},
		{"high", &bar.High, false},
		{"low", &bar.Low, false},
		{"close", &bar.Close, false},
		{"volume", &bar.Volume, true},
		{"fast_average", &bar.FastAverage, true},
		{"slow_average", &bar.SlowAverage, true},
	}
	for _, f := range fields {
		raw := getValue(f.name)
		if raw == "" && f.optional {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return bar, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = v
	}

	return bar, nil
}

// DayAndTime returns t as YYYYMMDD and HHMMSS
func DayAndTime(t time.Time) (day, tod int32) {
	day = int32(t.Year()*10000 + int(t.Month())*100 + t.Day())
	tod = int32(t.Hour()*10000 + t.Minute()*100 + t.Second())
	return day, tod
}
