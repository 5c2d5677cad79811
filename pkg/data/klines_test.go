package data

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klinesBody = `[
 [1704187800000,"42000.1","42100","41900","42050.5","12.5",1704187859999,"525000",310,"6","250000","0"],
 [1704187860000,"42050.5","42080","42010","42060","3",1704187919999,"126000",95,"1","42000","0"]
]`

func TestParseKlines(t *testing.T) {
	bars, err := ParseKlines([]byte(klinesBody), time.UTC)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, int32(20240102), bars[0].Day)
	assert.Equal(t, int32(93000), bars[0].Time)
	assert.Equal(t, 42000.1, bars[0].Open)
	assert.Equal(t, 42050.5, bars[0].Close)
	assert.Equal(t, 12.5, bars[0].Volume)
	assert.Equal(t, int32(93100), bars[1].Time)
}

func TestParseKlines_Malformed(t *testing.T) {
	_, err := ParseKlines([]byte(`[[1704187800000,"1","2"]]`), nil)
	assert.Error(t, err)

	_, err = ParseKlines([]byte(`[[1704187800000,"x","1","1","1","1"]]`), nil)
	assert.Error(t, err)
}

func TestParseKlines_NilLocationIsUTC(t *testing.T) {
	bars, err := ParseKlines([]byte(klinesBody), nil)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int32(93000), bars[0].Time)
}

func TestFetchKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(klinesBody))
	}))
	defer srv.Close()

	bars, err := FetchKlines(context.Background(), srv.Client(), srv.URL,
		KlineRequest{Symbol: "BTCUSDT", Interval: "1m", Limit: 2}, time.UTC)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestFetchKlines_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := FetchKlines(context.Background(), srv.Client(), srv.URL,
		KlineRequest{Symbol: "NOPE", Interval: "1m", Limit: 1}, nil)
	assert.ErrorContains(t, err, "Invalid symbol")
}

func TestWriteBars_RoundTripsThroughReadBars(t *testing.T) {
	bars, err := ParseKlines([]byte(klinesBody), time.UTC)
	require.NoError(t, err)
	bars[0].FastAverage = 42001

	var buf bytes.Buffer
	require.NoError(t, WriteBars(&buf, bars))
	assert.Contains(t, buf.String(), "20240102,093000,")

	got, skipped, err := ReadBars(&buf, time.UTC)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, bars, got)
}
