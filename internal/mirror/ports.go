// Package mirror defines the ports for keeping an external spreadsheet copy
// of the subscription list.
package mirror

import (
	"context"

	"subtrack/internal/core"
)

// Writer upserts one subscription row keyed by its ID and returns a reference
// to the written range.
type Writer interface {
	Upsert(ctx context.Context, sub core.Subscription) (string, error)
}

// Deleter removes the row for a subscription ID. Deleting a missing row is
// not an error.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}
