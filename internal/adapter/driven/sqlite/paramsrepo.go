package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ParamsStore = (*ParamsRepo)(nil)

// ParamsRepo is the SQLite implementation of the ParamsStore port interface.
// The crawler_params table holds a single row keyed on id=1.
type ParamsRepo struct {
	db *DB
}

// NewParamsRepo creates a new ParamsRepo backed by the given DB.
func NewParamsRepo(db *DB) *ParamsRepo {
	return &ParamsRepo{db: db}
}

// Get retrieves the stored crawler parameters. Returns (nil, nil) if none
// have been stored yet — callers should apply defaults.
func (r *ParamsRepo) Get(ctx context.Context) (*model.CrawlerParams, error) {
	const query = `SELECT delay_min, delay_max, max_retries FROM crawler_params WHERE id = 1`

	var p model.CrawlerParams
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&p.DelayMin, &p.DelayMax, &p.MaxRetries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crawler params: %w", err)
	}

	return &p, nil
}

// Set replaces the stored parameters. All three fields are written as one
// batch.
func (r *ParamsRepo) Set(ctx context.Context, params model.CrawlerParams) error {
	const query = `
		INSERT INTO crawler_params (id, delay_min, delay_max, max_retries, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			delay_min = excluded.delay_min,
			delay_max = excluded.delay_max,
			max_retries = excluded.max_retries,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		params.DelayMin, params.DelayMax, params.MaxRetries, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set crawler params: %w", err)
	}

	return nil
}
