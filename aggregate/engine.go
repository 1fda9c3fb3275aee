// Package aggregate computes summary statistics over samples grouped by the
// spatial hierarchy (room, department, floor, building).
package aggregate

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/c360/envmon/pkg/timestamp"
	"github.com/c360/envmon/sample"
	"github.com/c360/envmon/storage"
)

// Sentinel errors for aggregation queries
var (
	ErrInvalidLevel = stderrors.New("unknown aggregation level")
	ErrNoData       = stderrors.New("no samples in window")
)

// DefaultWindow is the trailing window used when the caller gives no bounds.
const DefaultWindow = 24 * time.Hour

// Aggregator is the slice of the store the engine queries.
type Aggregator interface {
	AggregateByLocation(ctx context.Context, column, value string, from, to int64) (storage.AggregateRow, error)
}

// Result is one aggregation answer. Bounds echo the effective window in
// RFC 3339 so callers see what defaults were applied.
type Result struct {
	Level          Level   `json:"level"`
	Location       string  `json:"location"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Count          int64   `json:"count"`
	AvgTemperature float64 `json:"avgTemperature"`
	MinTemperature float64 `json:"minTemperature"`
	MaxTemperature float64 `json:"maxTemperature"`
	AvgHumidity    float64 `json:"avgHumidity"`
	MinHumidity    float64 `json:"minHumidity"`
	MaxHumidity    float64 `json:"maxHumidity"`
}

// Engine answers aggregation queries against the sample store.
type Engine struct {
	store Aggregator
	// now is swappable for tests
	now func() int64
}

// NewEngine creates an aggregation engine over the given store.
func NewEngine(store Aggregator) *Engine {
	return &Engine{store: store, now: timestamp.Now}
}

// Window resolves the effective query window. Bounds come as Unix
// milliseconds with zero meaning unset; unless both are given, the window
// defaults to the trailing 24 hours.
func (e *Engine) Window(from, to int64) (int64, int64) {
	if from == 0 || to == 0 {
		now := e.now()
		return now - DefaultWindow.Milliseconds(), now
	}
	return from, to
}

// Query aggregates samples for one location at one level. Returns ErrNoData
// when the window holds no samples so callers can distinguish an empty
// answer from a zero-valued one.
func (e *Engine) Query(ctx context.Context, level Level, location string, from, to int64) (Result, error) {
	from, to = e.Window(from, to)

	row, err := e.store.AggregateByLocation(ctx, level.Column(), location, from, to)
	if err != nil {
		return Result{}, err
	}
	if row.Count == 0 {
		return Result{}, ErrNoData
	}

	return Result{
		Level:          level,
		Location:       location,
		From:           timestamp.Format(from),
		To:             timestamp.Format(to),
		Count:          row.Count,
		AvgTemperature: sample.Round2(row.AvgTemperature),
		MinTemperature: sample.Round2(row.MinTemperature),
		MaxTemperature: sample.Round2(row.MaxTemperature),
		AvgHumidity:    sample.Round2(row.AvgHumidity),
		MinHumidity:    sample.Round2(row.MinHumidity),
		MaxHumidity:    sample.Round2(row.MaxHumidity),
	}, nil
}
