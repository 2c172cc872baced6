package asset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
)

// memLedger is a minimal in-memory asset.Repository for query tests
type memLedger struct {
	byTag map[string]asset.Asset
}

func newMemLedger() *memLedger {
	return &memLedger{byTag: map[string]asset.Asset{}}
}

func (r *memLedger) seed(t *testing.T, tag, serial, name, category string) {
	t.Helper()
	a, err := asset.NewAsset(tag, serial, name, category)
	require.NoError(t, err)
	a.MarkPersisted()
	a.ClearDomainEvents()
	r.byTag[a.Tag] = *a
}

func (r *memLedger) FindByTag(_ context.Context, tag string) (*asset.Asset, error) {
	a, ok := r.byTag[tag]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := a
	return &cp, nil
}

func (r *memLedger) FindBySerialNumber(_ context.Context, serial string) (*asset.Asset, error) {
	for _, a := range r.byTag {
		if a.SerialNumber == serial {
			cp := a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLedger) FindAll(_ context.Context, filter shared.Filter) ([]asset.Asset, error) {
	out := make([]asset.Asset, 0, len(r.byTag))
	for _, a := range r.byTag {
		if category, ok := filter.Filters["category"]; ok && a.Category != category {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memLedger) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	matched, err := r.FindAll(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (r *memLedger) Create(context.Context, *asset.Asset) error       { return nil }
func (r *memLedger) SaveWithLock(context.Context, *asset.Asset) error { return nil }

func TestLedgerQueryService_GetByTag(t *testing.T) {
	repo := newMemLedger()
	repo.seed(t, "DC1-SRV-001", "SN-001", "web-01", "server")
	svc := NewLedgerQueryService(repo)

	got, err := svc.GetByTag(context.Background(), "DC1-SRV-001")
	require.NoError(t, err)
	assert.Equal(t, "DC1-SRV-001", got.Tag)
	assert.Equal(t, "SN-001", got.SerialNumber)
	assert.Equal(t, "registered", got.LifecycleStage)
	assert.True(t, got.Available)

	_, err = svc.GetByTag(context.Background(), "DC1-SRV-404")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedgerQueryService_GetBySerialNumber(t *testing.T) {
	repo := newMemLedger()
	repo.seed(t, "DC1-SRV-001", "SN-001", "web-01", "server")
	svc := NewLedgerQueryService(repo)

	got, err := svc.GetBySerialNumber(context.Background(), "SN-001")
	require.NoError(t, err)
	assert.Equal(t, "DC1-SRV-001", got.Tag)
}

func TestLedgerQueryService_List(t *testing.T) {
	repo := newMemLedger()
	repo.seed(t, "DC1-SRV-001", "SN-001", "web-01", "server")
	repo.seed(t, "DC1-SRV-002", "SN-002", "web-02", "server")
	repo.seed(t, "DC1-SW-001", "SN-003", "tor-01", "switch")
	svc := NewLedgerQueryService(repo)

	t.Run("unfiltered", func(t *testing.T) {
		page, err := svc.List(context.Background(), AssetListFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		assert.Len(t, page.Items, 3)
		assert.Equal(t, 1, page.Page)
	})

	t.Run("category filter", func(t *testing.T) {
		page, err := svc.List(context.Background(), AssetListFilter{Category: "switch"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "DC1-SW-001", page.Items[0].Tag)
	})
}
