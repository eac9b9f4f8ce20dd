package source

import (
	"context"

	"github.com/nhle/worklist/internal/model"
)

// FetchResult holds the normalized tasks returned by one fetch.
type FetchResult struct {
	Items []model.Task

	// Skipped counts raw items that failed to decode and were dropped.
	Skipped int
}

// Source defines the contract that every external integration must
// implement. An adapter instance is owned by one caller and holds no
// state shared with other adapters.
type Source interface {
	// Type returns the source type identifier.
	Type() model.SourceType

	// FetchActionable retrieves the source's actionable items, bounded by
	// the adapter's configured item cap. Either the full normalized list
	// or an error is returned; only individual undecodable items are
	// dropped, and counted in FetchResult.Skipped.
	FetchActionable(ctx context.Context) (*FetchResult, error)
}

// Archiver is implemented by sources that can remove an item from the
// active inbox or queue. Archive must be idempotent.
type Archiver interface {
	Archive(ctx context.Context, id string) error
}

// Completer is implemented by sources with a terminal workflow state.
type Completer interface {
	Complete(ctx context.Context, id string) error
}
