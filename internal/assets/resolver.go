package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loomline/designvault/internal/catalog"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/storage"
)

var worksheetExtensions = []string{".pdf", ".PDF"}

// Asset is a fetched design file.
type Asset struct {
	Key         string
	ContentType string
	Data        []byte
}

type locator interface {
	DesignLocation(ctx context.Context, designNo string) (*catalog.Location, error)
}

// Resolver maps design numbers to objects in the asset store.
type Resolver struct {
	catalog locator
	store   storage.ObjectStore
	logg    *logger.Logger
}

// NewResolver wires the catalog lookup to an object store.
func NewResolver(catalog locator, store storage.ObjectStore, logg *logger.Logger) (*Resolver, error) {
	if catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog lookup required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "object store required")
	}
	return &Resolver{catalog: catalog, store: store, logg: logg}, nil
}

// DesignKey builds the object key for a design file with the given extension.
func DesignKey(loc catalog.Location, designNo, ext string) string {
	return fmt.Sprintf("%s %s/%s/%s%s", loc.Code, loc.Category, loc.Subcategory, designNo, ext)
}

// DesignImage fetches the design's PNG.
func (r *Resolver) DesignImage(ctx context.Context, designNo string) (*Asset, error) {
	designNo = strings.TrimSpace(designNo)
	loc, err := r.locate(ctx, designNo)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, DesignKey(*loc, designNo, ".PNG"))
}

// Worksheet fetches the design's PDF worksheet, trying the lower-case
// extension first.
func (r *Resolver) Worksheet(ctx context.Context, designNo string) (*Asset, error) {
	designNo = strings.TrimSpace(designNo)
	loc, err := r.locate(ctx, designNo)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, ext := range worksheetExtensions {
		asset, err := r.fetch(ctx, DesignKey(*loc, designNo, ext))
		if err == nil {
			return asset, nil
		}
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "extension", ext), fmt.Sprintf("worksheet fetch failed: %v", err))
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *Resolver) locate(ctx context.Context, designNo string) (*catalog.Location, error) {
	if designNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design number is required")
	}
	return r.catalog.DesignLocation(ctx, designNo)
}

func (r *Resolver) fetch(ctx context.Context, key string) (*Asset, error) {
	data, contentType, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "asset not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to fetch asset")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "received empty file").
			WithDetails(map[string]any{"key": key})
	}
	return &Asset{Key: key, ContentType: contentType, Data: data}, nil
}
