package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigForTests(t *testing.T) {
	t.Setenv("HUB_CAPACITY", "64")

	cfg := ConfigForTests(t)
	assert.Equal(t, "0", cfg.Port)
	assert.NotEmpty(t, cfg.TokenSecret)
	assert.Equal(t, 64, cfg.HubCapacity)
	assert.Equal(t, 500, cfg.MaxMessageLength)
}
