// Package reconcile turns validated capability events into graph mutations:
// it resolves or creates the device and endpoint nodes for an asset, updates
// the endpoint's current value, and appends truthy values to the sample
// history.
package reconcile

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
	"github.com/spinalcom/spinal-organ-connector-azur/graphstore"
)

// Resolver maps natural keys (device name under the network context,
// endpoint name under a device) to graph nodes, creating missing nodes on
// first sight. Concurrent resolutions of the same key are serialized by a
// per-key lock so a name is never created twice; an in-process index skips
// the graph scan for keys already resolved.
type Resolver struct {
	store     graphstore.Store
	contextID string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	index map[string]string // natural key -> node ID
}

// NewResolver creates a resolver rooted at the network context node
func NewResolver(store graphstore.Store, contextID string) *Resolver {
	return &Resolver{
		store:     store,
		contextID: contextID,
		locks:     make(map[string]*sync.Mutex),
		index:     make(map[string]string),
	}
}

// lockKey acquires the per-key lock, returning the unlock function
func (r *Resolver) lockKey(key string) func() {
	r.mu.Lock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (r *Resolver) cached(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.index[key]
	return id, ok
}

func (r *Resolver) remember(key, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index[key] = id
}

// ResolveDevice finds or creates the device node named after the asset.
// The created flag reports whether the node was created by this call.
func (r *Resolver) ResolveDevice(ctx context.Context, name string) (*graphstore.Node, bool, error) {
	if name == "" {
		return nil, false, errors.WrapInvalid(errors.ErrInvalidData, "Resolver", "ResolveDevice", "empty device name")
	}
	return r.resolve(ctx, r.contextID, graphstore.RelationHasDevice,
		graphstore.Node{Type: graphstore.TypeDevice, Name: name})
}

// ResolveEndpoint finds or creates the endpoint node for a capability class
// under the given device.
func (r *Resolver) ResolveEndpoint(ctx context.Context, deviceID, name string) (*graphstore.Node, bool, error) {
	if name == "" {
		return nil, false, errors.WrapInvalid(errors.ErrInvalidData, "Resolver", "ResolveEndpoint", "empty endpoint name")
	}
	return r.resolve(ctx, deviceID, graphstore.RelationHasEndpoint, graphstore.Node{
		Type:     graphstore.TypeEndpoint,
		Name:     name,
		DataType: graphstore.DefaultDataType,
	})
}

func (r *Resolver) resolve(
	ctx context.Context, parentID, relation string, template graphstore.Node,
) (*graphstore.Node, bool, error) {
	key := parentID + "/" + relation + "/" + template.Name

	if id, ok := r.cached(key); ok {
		found := template
		found.ID = id
		return &found, false, nil
	}

	unlock := r.lockKey(key)
	defer unlock()

	// Another resolution may have completed while waiting on the lock
	if id, ok := r.cached(key); ok {
		found := template
		found.ID = id
		return &found, false, nil
	}

	node, err := r.store.FindChildByName(ctx, parentID, relation, template.Name)
	if err == nil {
		r.remember(key, node.ID)
		return node, false, nil
	}
	if !stderrors.Is(err, errors.ErrNodeNotFound) {
		return nil, false, err
	}

	node, err = r.store.CreateChild(ctx, parentID, relation, template)
	if err != nil {
		return nil, false, err
	}

	r.remember(key, node.ID)
	return node, true, nil
}
