package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEnvelope = `{
	"type": "CapabilityMessage",
	"value": {
		"capabilityId": "cap-1",
		"class": {"className": "Capability.Status.Occupancy_Status"},
		"value": "{\"value\":true,\"observationTime\":\"2026-03-01T10:15:00Z\"}",
		"asset": {
			"assetId": "asset-42",
			"name": "Desk Sensor 42",
			"class": {"className": "Asset.Sensor"},
			"locatedInSpaceId": "space-7"
		}
	}
}`

func TestDecodeEnvelope(t *testing.T) {
	msg, err := Decode([]byte(sampleEnvelope))
	require.NoError(t, err)

	assert.Equal(t, MessageType, msg.Type)
	assert.Equal(t, "Capability.Status.Occupancy_Status", msg.Value.Class.ClassName)
	require.NotNil(t, msg.Value.Asset)
	assert.Equal(t, "asset-42", msg.Value.Asset.AssetID)
	assert.Equal(t, "Desk Sensor 42", msg.Value.Asset.Name)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

func TestMessageEvent(t *testing.T) {
	msg, err := Decode([]byte(sampleEnvelope))
	require.NoError(t, err)

	evt, ok := msg.Event()
	require.True(t, ok)
	assert.Equal(t, "Capability.Status.Occupancy_Status", evt.CapabilityClass)
	assert.Equal(t, "Desk Sensor 42", evt.AssetName)
	assert.Equal(t, "asset-42", evt.AssetID)
	assert.Contains(t, evt.RawValue, "observationTime")
}

func TestMessageEventWrongType(t *testing.T) {
	msg := &Message{Type: "TelemetryMessage", Value: MessageValue{Asset: &Asset{Name: "x"}}}
	_, ok := msg.Event()
	assert.False(t, ok)
}

func TestMessageEventMissingAsset(t *testing.T) {
	msg := &Message{Type: MessageType}
	_, ok := msg.Event()
	assert.False(t, ok)
}

func TestClassFilter(t *testing.T) {
	f := NewClassFilter([]string{
		"Capability.Status.Occupancy_Status",
		"Capability.Status.Health_Status",
	})

	assert.True(t, f.Allows("Capability.Status.Occupancy_Status"))
	assert.True(t, f.Allows("Capability.Status.Health_Status"))
	assert.False(t, f.Allows("Capability.Status.People_Counting_Status"))
	assert.False(t, f.Allows(""))
	assert.Len(t, f.Classes(), 2)
}
