package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
)

func TestEnsureContextIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.EnsureContext(ctx, "BMS Network")
	require.NoError(t, err)

	second, err := store.EnsureContext(ctx, "BMS Network")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.NodeCount())
}

func TestFindContextMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.FindContext(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrContextNotFound)
}

func TestCreateAndFindChild(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	root, err := store.EnsureContext(ctx, "BMS Network")
	require.NoError(t, err)

	device, err := store.CreateChild(ctx, root.ID, RelationHasDevice, Node{Type: TypeDevice, Name: "Sensor 1"})
	require.NoError(t, err)
	require.NotEmpty(t, device.ID)

	found, err := store.FindChildByName(ctx, root.ID, RelationHasDevice, "Sensor 1")
	require.NoError(t, err)
	assert.Equal(t, device.ID, found.ID)
	assert.Equal(t, TypeDevice, found.Type)

	// Name match is exact and relation-scoped
	_, err = store.FindChildByName(ctx, root.ID, RelationHasDevice, "sensor 1")
	assert.ErrorIs(t, err, errors.ErrNodeNotFound)
	_, err = store.FindChildByName(ctx, root.ID, RelationHasEndpoint, "Sensor 1")
	assert.ErrorIs(t, err, errors.ErrNodeNotFound)
}

func TestCreateChildMissingParent(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.CreateChild(context.Background(), "nope", RelationHasDevice, Node{Name: "x"})
	assert.ErrorIs(t, err, errors.ErrNodeNotFound)
}

func TestSetCurrentValue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	root, err := store.EnsureContext(ctx, "net")
	require.NoError(t, err)
	endpoint, err := store.CreateChild(ctx, root.ID, RelationHasEndpoint, Node{Type: TypeEndpoint, Name: "Occupancy"})
	require.NoError(t, err)

	require.NoError(t, store.SetCurrentValue(ctx, endpoint.ID, float64(1)))

	found, err := store.FindChildByName(ctx, root.ID, RelationHasEndpoint, "Occupancy")
	require.NoError(t, err)
	assert.Equal(t, float64(1), found.CurrentValue)

	assert.ErrorIs(t, store.SetCurrentValue(ctx, "nope", 1), errors.ErrNodeNotFound)
}

func TestAttributes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	root, err := store.EnsureContext(ctx, "net")
	require.NoError(t, err)
	device, err := store.CreateChild(ctx, root.ID, RelationHasDevice, Node{Type: TypeDevice, Name: "Sensor 1"})
	require.NoError(t, err)

	attr := Attribute{Category: CategoryKardham, Key: KeyAssetID, Value: "asset-42"}
	require.NoError(t, store.UpsertAttribute(ctx, device.ID, attr))

	got, err := store.GetAttribute(ctx, device.ID, CategoryKardham, KeyAssetID)
	require.NoError(t, err)
	assert.Equal(t, "asset-42", got.Value)

	// Upsert overwrites
	attr.Value = "asset-43"
	require.NoError(t, store.UpsertAttribute(ctx, device.ID, attr))
	got, err = store.GetAttribute(ctx, device.ID, CategoryKardham, KeyAssetID)
	require.NoError(t, err)
	assert.Equal(t, "asset-43", got.Value)

	_, err = store.GetAttribute(ctx, device.ID, CategoryDefault, KeyMaxDay)
	assert.ErrorIs(t, err, errors.ErrKeyNotFound)
}

func TestListChildren(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	root, err := store.EnsureContext(ctx, "net")
	require.NoError(t, err)

	_, err = store.CreateChild(ctx, root.ID, RelationHasDevice, Node{Type: TypeDevice, Name: "A"})
	require.NoError(t, err)
	_, err = store.CreateChild(ctx, root.ID, RelationHasDevice, Node{Type: TypeDevice, Name: "B"})
	require.NoError(t, err)

	children, err := store.ListChildren(ctx, root.ID, RelationHasDevice)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "A", children[0].Name)
	assert.Equal(t, "B", children[1].Name)
}
