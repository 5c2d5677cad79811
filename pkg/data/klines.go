package data

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tunogya/etna/pkg/model"
)

// BinanceBaseURL is the public spot API
const BinanceBaseURL = "https://api.binance.com"

// KlineRequest selects the klines to fetch
type KlineRequest struct {
	Symbol   string
	Interval string // 1m, 5m, 1h, 1d, 1w, ...
	Limit    int    // max 1000
}

// FetchKlines downloads klines and converts them to bars with day and time
// in loc. Averages are left empty.
func FetchKlines(ctx context.Context, client *http.Client, baseURL string, req KlineRequest, loc *time.Location) ([]model.BaseBar, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if loc == nil {
		loc = time.UTC
	}

	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("interval", req.Interval)
	q.Set("limit", strconv.Itoa(req.Limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("klines request failed with %s: %s", resp.Status, body)
	}

	return ParseKlines(body, loc)
}

// ParseKlines converts the kline array format
// [open_time_ms, open, high, low, close, volume, close_time_ms, ...]
func ParseKlines(body []byte, loc *time.Location) ([]model.BaseBar, error) {
	if loc == nil {
		loc = time.UTC
	}
	var klines [][]json.RawMessage
	if err := json.Unmarshal(body, &klines); err != nil {
		return nil, fmt.Errorf("failed to parse klines: %w", err)
	}

	bars := make([]model.BaseBar, 0, len(klines))
	for i, k := range klines {
		if len(k) < 6 {
			return nil, fmt.Errorf("kline %d: expected at least 6 fields, got %d", i, len(k))
		}

		var openTimeMs int64
		if err := json.Unmarshal(k[0], &openTimeMs); err != nil {
			return nil, fmt.Errorf("kline %d: invalid open time: %w", i, err)
		}

		var bar model.BaseBar
		bar.Day, bar.Time = DayAndTime(time.UnixMilli(openTimeMs).In(loc))

		prices := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
		for j, dst := range prices {
			var s string
			if err := json.Unmarshal(k[j+1], &s); err != nil {
				return nil, fmt.Errorf("kline %d: field %d: %w", i, j+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline %d: field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// WriteBars writes bars in the day/time CSV layout ReadBars accepts
func WriteBars(w io.Writer, bars []model.BaseBar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"day", "time", "open", "high", "low", "close", "volume", "fast_average", "slow_average"}); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range bars {
		row := []string{
			strconv.FormatInt(int64(b.Day), 10),
			fmt.Sprintf("%06d", b.Time),
			format(b.Open),
			format(b.High),
			format(b.Low),
			format(b.Close),
			format(b.Volume),
			format(b.FastAverage),
			format(b.SlowAverage),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
