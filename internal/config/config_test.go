package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "mongodb://127.0.0.1:27017", c.RemoteURI)
	assert.Equal(t, "feedvault", c.Database)
	assert.Equal(t, "keystore.bin", c.KeystorePath)
	assert.Equal(t, ".", c.DataDir)
	assert.Equal(t, 12*time.Second, c.RequestTimeout)
	assert.Equal(t, "us-east-1", c.S3Region)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "mongodb://127.0.0.1:27017", cfg.RemoteURI)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout)
}
