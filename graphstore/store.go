package graphstore

import "context"

// Store is the graph persistence contract the reconciler depends on.
// Implementations must make FindChildByName consistent with CreateChild:
// a child created under a parent is observable by a subsequent find with
// the same name.
type Store interface {
	// FindContext resolves the named network context node.
	// Returns ErrContextNotFound when absent.
	FindContext(ctx context.Context, name string) (*Node, error)

	// EnsureContext resolves the named network context, creating it on
	// first use.
	EnsureContext(ctx context.Context, name string) (*Node, error)

	// FindChildByName scans the children of parentID under the given
	// relation for an exact name match. Returns ErrNodeNotFound when no
	// child matches.
	FindChildByName(ctx context.Context, parentID, relation, name string) (*Node, error)

	// CreateChild creates a node and links it under parentID with the
	// given relation, returning the node with its assigned ID.
	CreateChild(ctx context.Context, parentID, relation string, node Node) (*Node, error)

	// SetCurrentValue updates a node's current value in place
	SetCurrentValue(ctx context.Context, nodeID string, value any) error

	// UpsertAttribute creates or overwrites a categorized attribute on a node
	UpsertAttribute(ctx context.Context, nodeID string, attr Attribute) error

	// GetAttribute reads a categorized attribute from a node.
	// Returns ErrKeyNotFound when the attribute is absent.
	GetAttribute(ctx context.Context, nodeID, category, key string) (*Attribute, error)

	// ListChildren returns all children of parentID under the given relation
	ListChildren(ctx context.Context, parentID, relation string) ([]*Node, error)

	// Close releases the underlying connection
	Close(ctx context.Context) error
}
