// Package graphstore persists the device and endpoint graph the connector
// reconciles sensor events into. Nodes hang off a named network context and
// carry categorized attributes alongside a current value.
package graphstore

// Node types in the network graph
const (
	TypeContext  = "context"
	TypeDevice   = "device"
	TypeEndpoint = "endpoint"
)

// RelationHasEndpoint links a device to its capability endpoints, and the
// network context to its devices.
const RelationHasEndpoint = "hasEndpoint"

// RelationHasDevice links the network context to its devices
const RelationHasDevice = "hasDevice"

// Attribute categories and keys written during reconciliation
const (
	CategoryKardham = "KardhamDigital"
	KeyAssetID      = "asset_id"

	CategoryDefault = "default"
	KeyMaxDay       = "timeSeries maxDay"
)

// DefaultDataType is the data type stamped on endpoints at creation
const DefaultDataType = "Real"

// Node is one vertex in the network graph
type Node struct {
	ID           string
	Type         string
	Name         string
	CurrentValue any
	DataType     string
	Unit         string
}

// Attribute is one categorized key-value entry attached to a node
type Attribute struct {
	Category string
	Key      string
	Value    string
}
