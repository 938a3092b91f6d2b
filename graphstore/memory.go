package graphstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
)

// MemoryStore is an in-process Store used by tests and local runs without a
// graph database. It preserves the scan semantics of the real store: child
// lookups walk the parent's edge list and match on exact name.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	// edges maps parentID -> relation -> ordered child IDs
	edges map[string]map[string][]string
	attrs map[string]map[string]string // nodeID -> "category/key" -> value
}

// NewMemoryStore creates an empty in-memory graph
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*Node),
		edges: make(map[string]map[string][]string),
		attrs: make(map[string]map[string]string),
	}
}

// FindContext resolves a named context node
func (s *MemoryStore) FindContext(_ context.Context, name string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nodes {
		if n.Type == TypeContext && n.Name == name {
			return cloneNode(n), nil
		}
	}
	return nil, errors.Wrap(errors.ErrContextNotFound, "MemoryStore", "FindContext", name)
}

// EnsureContext resolves a named context node, creating it on first use
func (s *MemoryStore) EnsureContext(_ context.Context, name string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.nodes {
		if n.Type == TypeContext && n.Name == name {
			return cloneNode(n), nil
		}
	}

	node := &Node{ID: uuid.NewString(), Type: TypeContext, Name: name}
	s.nodes[node.ID] = node
	return cloneNode(node), nil
}

// FindChildByName scans the parent's children for an exact name match
func (s *MemoryStore) FindChildByName(_ context.Context, parentID, relation, name string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, childID := range s.edges[parentID][relation] {
		if child := s.nodes[childID]; child != nil && child.Name == name {
			return cloneNode(child), nil
		}
	}
	return nil, errors.Wrap(errors.ErrNodeNotFound, "MemoryStore", "FindChildByName", name)
}

// CreateChild creates a node and links it under the parent
func (s *MemoryStore) CreateChild(_ context.Context, parentID, relation string, node Node) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[parentID]; !ok {
		return nil, errors.Wrap(errors.ErrNodeNotFound, "MemoryStore", "CreateChild", parentID)
	}

	node.ID = uuid.NewString()
	stored := node
	s.nodes[node.ID] = &stored

	if s.edges[parentID] == nil {
		s.edges[parentID] = make(map[string][]string)
	}
	s.edges[parentID][relation] = append(s.edges[parentID][relation], node.ID)

	return cloneNode(&stored), nil
}

// SetCurrentValue updates a node's current value
func (s *MemoryStore) SetCurrentValue(_ context.Context, nodeID string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[nodeID]
	if !ok {
		return errors.Wrap(errors.ErrNodeNotFound, "MemoryStore", "SetCurrentValue", nodeID)
	}
	node.CurrentValue = value
	return nil
}

// UpsertAttribute creates or overwrites a categorized attribute
func (s *MemoryStore) UpsertAttribute(_ context.Context, nodeID string, attr Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return errors.Wrap(errors.ErrNodeNotFound, "MemoryStore", "UpsertAttribute", nodeID)
	}
	if s.attrs[nodeID] == nil {
		s.attrs[nodeID] = make(map[string]string)
	}
	s.attrs[nodeID][attr.Category+"/"+attr.Key] = attr.Value
	return nil
}

// GetAttribute reads a categorized attribute
func (s *MemoryStore) GetAttribute(_ context.Context, nodeID, category, key string) (*Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.attrs[nodeID][category+"/"+key]
	if !ok {
		return nil, errors.Wrap(errors.ErrKeyNotFound, "MemoryStore", "GetAttribute", key)
	}
	return &Attribute{Category: category, Key: key, Value: value}, nil
}

// ListChildren returns the parent's children under the given relation
func (s *MemoryStore) ListChildren(_ context.Context, parentID, relation string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.edges[parentID][relation]
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n := s.nodes[id]; n != nil {
			nodes = append(nodes, cloneNode(n))
		}
	}
	return nodes, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close(context.Context) error { return nil }

// NodeCount returns the number of nodes in the graph
func (s *MemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func cloneNode(n *Node) *Node {
	c := *n
	return &c
}
