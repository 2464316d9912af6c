package driven

import (
	"context"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// ParamsStore defines the driven port for crawler parameter persistence.
type ParamsStore interface {
	// Get retrieves the stored crawler parameters. Returns (nil, nil) if
	// none have been stored yet — callers should apply defaults.
	Get(ctx context.Context) (*model.CrawlerParams, error)

	// Set replaces the stored parameters. All three fields are written as
	// one batch; there is no partial-update path.
	Set(ctx context.Context, params model.CrawlerParams) error
}
