package backend

import (
	"context"

	"nebenkosten/internal/history"
	"nebenkosten/internal/services"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// ReadyFunc reports whether the backend can currently serve requests.
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the history store, the optional event publisher and
// the hooks the process needs around them.
type BackendResult struct {
	Store     history.Store
	Publisher services.Publisher // nil when events are disabled
	Ready     ReadyFunc
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
