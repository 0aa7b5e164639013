package app

import (
	"context"

	"reviewdeck/internal/client"
	"reviewdeck/internal/persist"
	"reviewdeck/internal/scheduler"
	"reviewdeck/internal/telemetry"
	"reviewdeck/internal/types"
)

// API is the slice of the backend client the UI drives. *client.Client
// satisfies it.
type API interface {
	persist.SettingsAPI
	telemetry.StatusAPI
	scheduler.JobAPI
	scheduler.ProviderAPI
	SaveProviderTree(ctx context.Context, tree *types.ProviderTree) error
	Export(ctx context.Context, kind types.JobKind) (*client.Download, error)
}

var _ API = (*client.Client)(nil)
