// Package store persists the page cache and the stage run log.
package store

import (
	"context"
	"time"

	"github.com/sells-group/roundtable-cli/internal/model"
)

// RunFilter specifies criteria for listing stage runs.
type RunFilter struct {
	Stage  string          `json:"stage,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the roundtable stages.
type Store interface {
	// Stage runs
	CreateRun(ctx context.Context, stage string) (*model.StageRun, error)
	FinishRun(ctx context.Context, id string, status model.RunStatus, records int, detail string) error
	GetRun(ctx context.Context, id string) (*model.StageRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.StageRun, error)

	// Page cache
	GetPage(ctx context.Context, url string, now time.Time) (*model.CachedPage, error)
	PutPage(ctx context.Context, page model.CachedPage) error
	DeleteExpiredPages(ctx context.Context, now time.Time) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
