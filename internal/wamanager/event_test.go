package wamanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEncodeDecode(t *testing.T) {
	ev := &Event{
		ID:         123456789,
		InstanceID: 42,
		Kind:       EventMessage,
		Payload:    map[string]interface{}{"body": "hello"},
		Timestamp:  time.Now().UTC().Truncate(time.Second),
	}
	data, err := ev.Encode()
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.InstanceID, got.InstanceID)
	assert.Equal(t, EventMessage, got.Kind)
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte("{not json"))
	assert.Error(t, err)
}
