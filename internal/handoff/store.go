package handoff

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/content-harvester/internal/handoff/gcs"
	"github.com/JakeFAU/content-harvester/internal/handoff/local"
	"github.com/JakeFAU/content-harvester/internal/handoff/memory"
)

// Providers.
const (
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
)

// Config selects and configures the blob store.
type Config struct {
	Provider string       `mapstructure:"provider"`
	Prefix   string       `mapstructure:"prefix"`
	Local    local.Config `mapstructure:"local"`
	GCS      gcs.Config   `mapstructure:"gcs"`
}

// NewStore builds the BlobStore named by cfg.Provider. The returned close
// function releases any client it created.
func NewStore(ctx context.Context, cfg Config) (BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case ProviderLocal:
		store, err := local.New(cfg.Local)
		if err != nil {
			return nil, noop, fmt.Errorf("local handoff store: %w", err)
		}
		return store, noop, nil
	case ProviderGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, cfg.GCS)
		if err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("gcs handoff store: %w", err)
		}
		return store, client.Close, nil
	case ProviderMemory, "":
		return memory.NewBlobStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown handoff provider %q", cfg.Provider)
	}
}
