package driven

import "context"

// MaintenanceStore defines the driven port for destructive and administrative
// database operations exposed on the settings panel.
type MaintenanceStore interface {
	// ClearAllData deletes every crawled comment and watched video. Stored
	// cookies are not touched; they have their own Clear on CookieStore.
	ClearAllData(ctx context.Context) error

	// Backup writes a consistent snapshot of the database. Currently always
	// returns model.ErrNotImplemented.
	Backup(ctx context.Context) error
}
