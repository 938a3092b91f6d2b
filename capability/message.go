// Package capability defines the inbound capability event contract and the
// value normalization rules applied before reconciliation.
package capability

import (
	"encoding/json"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
)

// MessageType is the envelope type for capability updates; anything else on
// the bus is discarded silently.
const MessageType = "CapabilityMessage"

// Message is the envelope published on the event bus for one capability
// state change of an asset.
type Message struct {
	Type  string       `json:"type"`
	Value MessageValue `json:"value"`
}

// MessageValue carries the capability identity, the raw observation payload,
// and the originating asset.
type MessageValue struct {
	CapabilityID  string         `json:"capabilityId,omitempty"`
	Class         ClassRef       `json:"class"`
	Configuration *Configuration `json:"configuration,omitempty"`
	// Value is a JSON-encoded observation ({"value":...,"observationTime":...})
	Value string `json:"value"`
	Asset *Asset `json:"asset"`
}

// ClassRef names a capability or asset class
type ClassRef struct {
	ClassName string `json:"className"`
}

// Configuration describes the communication configuration attached to the
// capability. Carried through for completeness; the reconciler does not
// consume it.
type Configuration struct {
	CommunicationConfigurationID string   `json:"communicationConfigurationId,omitempty"`
	Class                        ClassRef `json:"class"`
	Value                        string   `json:"value,omitempty"`
}

// Asset identifies the physical or logical asset the capability belongs to
type Asset struct {
	AssetID          string    `json:"assetId"`
	Name             string    `json:"name"`
	Class            ClassRef  `json:"class,omitempty"`
	LocatedInSpaceID string    `json:"locatedInSpaceId,omitempty"`
	LocatedIn        *Location `json:"locatedIn,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
}

// Location describes the space an asset is located in
type Location struct {
	SpaceID string   `json:"spaceId,omitempty"`
	Name    string   `json:"name,omitempty"`
	PartOf  string   `json:"partOf,omitempty"`
	Class   ClassRef `json:"class,omitempty"`
}

// Event is the internal, validated form of a capability message consumed by
// the reconciler. Immutable once constructed.
type Event struct {
	CapabilityClass string
	AssetName       string
	AssetID         string
	RawValue        string
}

// Decode parses an envelope from the wire
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.WrapInvalid(err, "Message", "Decode", "unmarshal envelope")
	}
	return &msg, nil
}

// Event converts a validated message into the internal event form.
// Returns false when the message is not a capability update or carries no
// asset; such messages are dropped, not failed.
func (m *Message) Event() (Event, bool) {
	if m.Type != MessageType || m.Value.Asset == nil {
		return Event{}, false
	}

	return Event{
		CapabilityClass: m.Value.Class.ClassName,
		AssetName:       m.Value.Asset.Name,
		AssetID:         m.Value.Asset.AssetID,
		RawValue:        m.Value.Value,
	}, true
}
