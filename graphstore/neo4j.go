package graphstore

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
)

// Neo4jStore persists the network graph in a Neo4j (or bolt-compatible)
// database. Nodes carry an application-assigned id property; parent-child
// links are CHILD relationships tagged with the relation name, and
// categorized attributes live on HAS_ATTRIBUTE relationships to Attribute
// nodes so keys may contain characters Cypher property names cannot.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Neo4jConfig holds the connection settings for the graph database
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewNeo4jStore connects to the graph database and verifies connectivity
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, errors.WrapFatal(err, "Neo4jStore", "NewNeo4jStore", "create driver")
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, errors.WrapTransient(err, "Neo4jStore", "NewNeo4jStore", "verify connectivity")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

// EnsureIndices creates the id and name indices the reconciler's lookups
// depend on. Failures are logged and skipped; the index may already exist.
func (s *Neo4jStore) EnsureIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX node_id IF NOT EXISTS FOR (n:Node) ON (n.id)",
		"CREATE INDEX node_name IF NOT EXISTS FOR (n:Node) ON (n.name)",
	}

	for _, q := range queries {
		if _, err := s.run(ctx, q, nil); err != nil {
			s.logger.Warn("Index creation skipped", "query", q, "error", err)
		}
	}
	return nil
}

func (s *Neo4jStore) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindContext resolves the named network context node
func (s *Neo4jStore) FindContext(ctx context.Context, name string) (*Node, error) {
	result, err := s.run(ctx,
		"MATCH (n:Node {type: $type, name: $name}) RETURN n.id AS id, n.name AS name LIMIT 1",
		map[string]any{"type": TypeContext, "name": name})
	if err != nil {
		return nil, errors.WrapTransient(err, "Neo4jStore", "FindContext", name)
	}

	if len(result.Records) == 0 {
		return nil, errors.Wrap(errors.ErrContextNotFound, "Neo4jStore", "FindContext", name)
	}

	return recordToNode(result.Records[0], TypeContext)
}

// EnsureContext resolves the named network context, creating it on first use
func (s *Neo4jStore) EnsureContext(ctx context.Context, name string) (*Node, error) {
	result, err := s.run(ctx,
		`MERGE (n:Node {type: $type, name: $name})
		 ON CREATE SET n.id = $id
		 RETURN n.id AS id, n.name AS name`,
		map[string]any{"type": TypeContext, "name": name, "id": uuid.NewString()})
	if err != nil {
		return nil, errors.WrapTransient(err, "Neo4jStore", "EnsureContext", name)
	}

	if len(result.Records) == 0 {
		return nil, errors.Wrap(errors.ErrContextNotFound, "Neo4jStore", "EnsureContext", name)
	}

	return recordToNode(result.Records[0], TypeContext)
}

// FindChildByName scans the children of a parent for an exact name match
func (s *Neo4jStore) FindChildByName(ctx context.Context, parentID, relation, name string) (*Node, error) {
	result, err := s.run(ctx,
		`MATCH (p:Node {id: $parentId})-[:CHILD {relation: $relation}]->(c:Node {name: $name})
		 RETURN c.id AS id, c.name AS name, c.type AS type, c.currentValue AS currentValue,
		        c.dataType AS dataType, c.unit AS unit
		 LIMIT 1`,
		map[string]any{"parentId": parentID, "relation": relation, "name": name})
	if err != nil {
		return nil, errors.WrapTransient(err, "Neo4jStore", "FindChildByName", name)
	}

	if len(result.Records) == 0 {
		return nil, errors.Wrap(errors.ErrNodeNotFound, "Neo4jStore", "FindChildByName", name)
	}

	return recordToNode(result.Records[0], "")
}

// CreateChild creates a node and links it under the parent
func (s *Neo4jStore) CreateChild(ctx context.Context, parentID, relation string, node Node) (*Node, error) {
	node.ID = uuid.NewString()

	result, err := s.run(ctx,
		`MATCH (p:Node {id: $parentId})
		 CREATE (c:Node {id: $id, type: $type, name: $name, dataType: $dataType, unit: $unit})
		 CREATE (p)-[:CHILD {relation: $relation}]->(c)
		 RETURN c.id AS id`,
		map[string]any{
			"parentId": parentID,
			"relation": relation,
			"id":       node.ID,
			"type":     node.Type,
			"name":     node.Name,
			"dataType": node.DataType,
			"unit":     node.Unit,
		})
	if err != nil {
		return nil, errors.WrapTransient(err, "Neo4jStore", "CreateChild", node.Name)
	}

	if len(result.Records) == 0 {
		return nil, errors.Wrap(errors.ErrNodeNotFound, "Neo4jStore", "CreateChild", parentID)
	}

	return &node, nil
}

// SetCurrentValue updates a node's current value
func (s *Neo4jStore) SetCurrentValue(ctx context.Context, nodeID string, value any) error {
	result, err := s.run(ctx,
		"MATCH (n:Node {id: $id}) SET n.currentValue = $value RETURN n.id AS id",
		map[string]any{"id": nodeID, "value": value})
	if err != nil {
		return errors.WrapTransient(err, "Neo4jStore", "SetCurrentValue", nodeID)
	}
	if len(result.Records) == 0 {
		return errors.Wrap(errors.ErrNodeNotFound, "Neo4jStore", "SetCurrentValue", nodeID)
	}
	return nil
}

// UpsertAttribute creates or overwrites a categorized attribute on a node
func (s *Neo4jStore) UpsertAttribute(ctx context.Context, nodeID string, attr Attribute) error {
	result, err := s.run(ctx,
		`MATCH (n:Node {id: $id})
		 MERGE (n)-[:HAS_ATTRIBUTE]->(a:Attribute {category: $category, key: $key})
		 SET a.value = $value
		 RETURN n.id AS id`,
		map[string]any{"id": nodeID, "category": attr.Category, "key": attr.Key, "value": attr.Value})
	if err != nil {
		return errors.WrapTransient(err, "Neo4jStore", "UpsertAttribute", attr.Key)
	}
	if len(result.Records) == 0 {
		return errors.Wrap(errors.ErrNodeNotFound, "Neo4jStore", "UpsertAttribute", nodeID)
	}
	return nil
}

// GetAttribute reads a categorized attribute from a node
func (s *Neo4jStore) GetAttribute(ctx context.Context, nodeID, category, key string) (*Attribute, error) {
	result, err := s.run(ctx,
		`MATCH (n:Node {id: $id})-[:HAS_ATTRIBUTE]->(a:Attribute {category: $category, key: $key})
		 RETURN a.value AS value LIMIT 1`,
		map[string]any{"id": nodeID, "category": category, "key": key})
	if err != nil {
		return nil, errors.WrapTransient(err, "Neo4jStore", "GetAttribute", key)
	}
	if len(result.Records) == 0 {
		return nil, errors.Wrap(errors.ErrKeyNotFound, "Neo4jStore", "GetAttribute", key)
	}

	value, _ := result.Records[0].Get("value")
	str, _ := value.(string)
	return &Attribute{Category: category, Key: key, Value: str}, nil
}

// ListChildren returns all children of a parent under the given relation
func (s *Neo4jStore) ListChildren(ctx context.Context, parentID, relation string) ([]*Node, error) {
	result, err := s.run(ctx,
		`MATCH (p:Node {id: $parentId})-[:CHILD {relation: $relation}]->(c:Node)
		 RETURN c.id AS id, c.name AS name, c.type AS type, c.currentValue AS currentValue,
		        c.dataType AS dataType, c.unit AS unit`,
		map[string]any{"parentId": parentID, "relation": relation})
	if err != nil {
		return nil, errors.WrapTransient(err, "Neo4jStore", "ListChildren", parentID)
	}

	nodes := make([]*Node, 0, len(result.Records))
	for _, record := range result.Records {
		node, err := recordToNode(record, "")
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Close releases the driver connection pool
func (s *Neo4jStore) Close(ctx context.Context) error {
	if err := s.driver.Close(ctx); err != nil {
		return errors.Wrap(err, "Neo4jStore", "Close", "close driver")
	}
	return nil
}

func recordToNode(record *neo4j.Record, fallbackType string) (*Node, error) {
	id, ok := record.Get("id")
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidData, "Neo4jStore", "recordToNode", "read id")
	}

	node := &Node{Type: fallbackType}
	node.ID, _ = id.(string)

	if v, ok := record.Get("name"); ok {
		node.Name, _ = v.(string)
	}
	if v, ok := record.Get("type"); ok {
		if s, ok := v.(string); ok && s != "" {
			node.Type = s
		}
	}
	if v, ok := record.Get("currentValue"); ok {
		node.CurrentValue = v
	}
	if v, ok := record.Get("dataType"); ok {
		node.DataType, _ = v.(string)
	}
	if v, ok := record.Get("unit"); ok {
		node.Unit, _ = v.(string)
	}

	return node, nil
}
