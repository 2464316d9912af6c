package sqlite

import (
	"context"
	"fmt"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MaintenanceStore = (*MaintenanceRepo)(nil)

// MaintenanceRepo implements the destructive and administrative database
// operations exposed on the settings panel.
type MaintenanceRepo struct {
	db *DB
}

// NewMaintenanceRepo creates a new MaintenanceRepo backed by the given DB.
func NewMaintenanceRepo(db *DB) *MaintenanceRepo {
	return &MaintenanceRepo{db: db}
}

// ClearAllData deletes every crawled comment and watched video in one
// transaction. Stored cookies are left intact.
func (r *MaintenanceRepo) ClearAllData(ctx context.Context) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear all data: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM comments`); err != nil {
		return fmt.Errorf("clear comments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM videos`); err != nil {
		return fmt.Errorf("clear videos: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear all data: %w", err)
	}
	return nil
}

// Backup is not implemented yet.
// TODO: snapshot via VACUUM INTO once a backup destination setting exists.
func (r *MaintenanceRepo) Backup(ctx context.Context) error {
	return model.ErrNotImplemented
}
