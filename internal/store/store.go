// Package store defines the tick persistence contract and opens the configured backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go-ticker/internal/common"
	"go-ticker/internal/config"
	"go-ticker/internal/store/jsonl"
	"go-ticker/internal/store/memory"
	"go-ticker/internal/store/postgres"
	"go-ticker/pkg/models"
)

// TickStore is append-only, time-indexed tick persistence.
//
// Range is inclusive of both from and to and returns ticks in ascending
// timestamp order; a positive limit keeps only the most recent limit ticks.
// Last returns common.ErrEmptySeries when nothing is stored. Ping returns
// common.ErrStoreUnavailable until the backend can serve requests.
type TickStore interface {
	Ping(ctx context.Context) error
	Append(ctx context.Context, tick models.Tick) (int64, error)
	AppendBatch(ctx context.Context, ticks []models.Tick) error
	Last(ctx context.Context) (models.Tick, error)
	Range(ctx context.Context, from, to int64, limit int) ([]models.Tick, error)
	Close() error
}

// Open creates the backend selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (TickStore, error) {
	switch cfg.Driver {
	case "", common.StoreDriverMemory:
		return memory.New(), nil
	case common.StoreDriverJSONL:
		return jsonl.Open(cfg.Path)
	case common.StoreDriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// Seed appends an initial tick when the store is empty. It reports whether it wrote one.
func Seed(ctx context.Context, s TickStore, price decimal.Decimal, timestamp int64) (bool, error) {
	_, err := s.Last(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrEmptySeries) {
		return false, fmt.Errorf("seed: %w", err)
	}
	tick, err := models.NewTick(price, timestamp)
	if err != nil {
		return false, fmt.Errorf("seed: %w", err)
	}
	if _, err := s.Append(ctx, tick); err != nil {
		return false, fmt.Errorf("seed: %w", err)
	}
	return true, nil
}
