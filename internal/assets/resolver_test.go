package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomline/designvault/internal/catalog"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/storage"
)

type stubLocator struct {
	loc *catalog.Location
	err error
}

func (s stubLocator) DesignLocation(context.Context, string) (*catalog.Location, error) {
	return s.loc, s.err
}

type mapStore struct {
	objects map[string][]byte
	failure error
	keys    []string
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, string, error) {
	m.keys = append(m.keys, key)
	if m.failure != nil {
		return nil, "", m.failure
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return data, "application/octet-stream", nil
}

var roses = &catalog.Location{Code: "AB", Category: "Applique Borders", Subcategory: "Roses"}

func newTestResolver(t *testing.T, loc stubLocator, store *mapStore) *Resolver {
	t.Helper()
	r, err := NewResolver(loc, store, logger.New(logger.Options{ServiceName: "assets-test", Output: io.Discard}))
	require.NoError(t, err)
	return r
}

func TestDesignImageBuildsKey(t *testing.T) {
	store := &mapStore{objects: map[string][]byte{
		"AB Applique Borders/Roses/AB001.PNG": []byte("png"),
	}}
	r := newTestResolver(t, stubLocator{loc: roses}, store)

	asset, err := r.DesignImage(context.Background(), " AB001 ")
	require.NoError(t, err)
	assert.Equal(t, "AB Applique Borders/Roses/AB001.PNG", asset.Key)
	assert.Equal(t, []byte("png"), asset.Data)
}

func TestWorksheetFallsBackToUpperCaseExtension(t *testing.T) {
	store := &mapStore{objects: map[string][]byte{
		"AB Applique Borders/Roses/AB001.PDF": []byte("%PDF"),
	}}
	r := newTestResolver(t, stubLocator{loc: roses}, store)

	asset, err := r.Worksheet(context.Background(), "AB001")
	require.NoError(t, err)
	assert.Equal(t, "AB Applique Borders/Roses/AB001.PDF", asset.Key)
	assert.Equal(t, []string{
		"AB Applique Borders/Roses/AB001.pdf",
		"AB Applique Borders/Roses/AB001.PDF",
	}, store.keys)
}

func TestResolverErrors(t *testing.T) {
	ctx := context.Background()

	r := newTestResolver(t, stubLocator{loc: roses}, &mapStore{})
	_, err := r.DesignImage(ctx, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = r.DesignImage(ctx, "AB404")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = r.Worksheet(ctx, "AB404")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	empty := newTestResolver(t, stubLocator{loc: roses}, &mapStore{objects: map[string][]byte{
		"AB Applique Borders/Roses/AB002.PNG": {},
	}})
	_, err = empty.DesignImage(ctx, "AB002")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	broken := newTestResolver(t, stubLocator{loc: roses}, &mapStore{failure: errors.New("connection reset")})
	_, err = broken.DesignImage(ctx, "AB003")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	unknown := newTestResolver(t, stubLocator{err: pkgerrors.New(pkgerrors.CodeNotFound, "design not found")}, &mapStore{})
	_, err = unknown.DesignImage(ctx, "ZZ999")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewResolverRequiresDependencies(t *testing.T) {
	_, err := NewResolver(nil, &mapStore{}, nil)
	assert.Error(t, err)
	_, err = NewResolver(stubLocator{}, nil, nil)
	assert.Error(t, err)
}
