package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/storage"
	"github.com/loomline/designvault/pkg/storage/gcs"
	"github.com/loomline/designvault/pkg/storage/httpstore"
	"github.com/loomline/designvault/pkg/storage/s3"
)

// OpenStore builds the object store selected by cfg.Assets.Backend.
func OpenStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.ObjectStore, error) {
	var (
		store storage.ObjectStore
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Assets.Backend)) {
	case config.AssetsBackendS3:
		store, err = s3.NewClient(ctx, cfg.Assets, logg)
	case config.AssetsBackendGCS:
		store, err = gcs.NewClient(ctx, cfg.Assets, cfg.GCP, logg)
	case config.AssetsBackendHTTP:
		store, err = httpstore.NewClient(cfg.Assets.BaseURL, cfg.Assets.FetchTimeout)
	default:
		return nil, fmt.Errorf("unsupported assets backend %q", cfg.Assets.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
