package nats

import (
	"encoding/json"
	"fmt"

	"github.com/tunogya/etna/pkg/model"
)

// Subject constants
const (
	SubjectBars = "etna.bars"
)

// BarMsg carries a single closed bar
type BarMsg struct {
	Bar model.BaseBar `json:"bar"`
}

// BarBatchMsg carries consecutive closed bars in time order
type BarBatchMsg struct {
	Bars []model.BaseBar `json:"bars"`
}

// Encode serializes a message to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeBars deserializes either a BarMsg or a BarBatchMsg
func DecodeBars(data []byte) ([]model.BaseBar, error) {
	var probe struct {
		Bar  *model.BaseBar  `json:"bar"`
		Bars []model.BaseBar `json:"bars"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch {
	case probe.Bars != nil:
		return probe.Bars, nil
	case probe.Bar != nil:
		return []model.BaseBar{*probe.Bar}, nil
	default:
		return nil, fmt.Errorf("message has neither bar nor bars")
	}
}
