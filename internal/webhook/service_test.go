package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribed(t *testing.T) {
	// empty filter admits every kind
	assert.True(t, Subscribed("", "message"))
	assert.True(t, Subscribed("   ", "qr"))

	assert.True(t, Subscribed("message", "message"))
	assert.True(t, Subscribed("message,message_ack", "message_ack"))
	assert.True(t, Subscribed(" message , qr ", "qr"))

	assert.False(t, Subscribed("message", "qr"))
	assert.False(t, Subscribed("message,call", "group_join"))
	// no prefix matching
	assert.False(t, Subscribed("message_ack", "message"))
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100, cfg.DrainBatch)
	assert.Positive(t, cfg.Timeout)
	assert.Positive(t, cfg.DrainEvery)
	assert.Positive(t, cfg.RetryBackoff)
}
