// Package postgres stores ticks in a PostgreSQL table through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go-ticker/internal/common"
	"go-ticker/pkg/db"
	"go-ticker/pkg/models"
)

const (
	schemaSQL = `
CREATE TABLE IF NOT EXISTS ticks (
	id        BIGSERIAL PRIMARY KEY,
	price     NUMERIC   NOT NULL CHECK (price >= 0),
	ts        BIGINT    NOT NULL CHECK (ts >= 0)
);
CREATE INDEX IF NOT EXISTS ticks_ts_idx ON ticks (ts, id);`

	insertSQL = `INSERT INTO ticks (price, ts) VALUES ($1::numeric, $2) RETURNING id`
	lastSQL   = `SELECT price::text, ts FROM ticks ORDER BY ts DESC, id DESC LIMIT 1`
	// LIMIT NULL means no limit.
	rangeSQL = `
SELECT price::text, ts FROM (
	SELECT id, price, ts FROM ticks
	WHERE ts >= $1 AND ts <= $2
	ORDER BY ts DESC, id DESC
	LIMIT $3
) recent ORDER BY ts ASC, id ASC`
)

type Store struct {
	tm *db.PgTxManager
}

// Open connects, pings and makes sure the ticks table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: empty dsn")
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}
	s := &Store{tm: db.NewPgTxManager(pool)}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := s.tm.Conn().Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.tm.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, tick models.Tick) (int64, error) {
	if err := validate(tick); err != nil {
		return 0, err
	}
	var id int64
	err := s.tm.Conn().QueryRow(ctx, insertSQL, tick.Price.String(), tick.Timestamp).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres store: append: %w", err)
	}
	return id, nil
}

// AppendBatch inserts all ticks in one transaction.
func (s *Store) AppendBatch(ctx context.Context, ticks []models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if err := validate(t); err != nil {
			return err
		}
	}
	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, t := range ticks {
			batch.Queue(insertSQL, t.Price.String(), t.Timestamp)
		}
		return tx.SendBatch(ctxTx, batch).Close()
	})
}

func (s *Store) Last(ctx context.Context) (models.Tick, error) {
	var (
		price string
		ts    int64
	)
	err := s.tm.Conn().QueryRow(ctx, lastSQL).Scan(&price, &ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tick{}, common.ErrEmptySeries
	}
	if err != nil {
		return models.Tick{}, fmt.Errorf("postgres store: last: %w", err)
	}
	return toTick(price, ts)
}

func (s *Store) Range(ctx context.Context, from, to int64, limit int) ([]models.Tick, error) {
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}
	rows, err := s.tm.Conn().Query(ctx, rangeSQL, from, to, lim)
	if err != nil {
		return nil, fmt.Errorf("postgres store: range: %w", err)
	}
	defer rows.Close()

	out := make([]models.Tick, 0)
	for rows.Next() {
		var (
			price string
			ts    int64
		)
		if err := rows.Scan(&price, &ts); err != nil {
			return nil, fmt.Errorf("postgres store: range scan: %w", err)
		}
		t, err := toTick(price, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: range: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	s.tm.Close()
	return nil
}

func validate(t models.Tick) error {
	_, err := models.NewTick(t.Price, t.Timestamp)
	return err
}

func toTick(price string, ts int64) (models.Tick, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return models.Tick{}, fmt.Errorf("postgres store: price %q: %w", price, err)
	}
	return models.NewTick(d, ts)
}
