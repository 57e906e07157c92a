package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("security.jwtsecret", "s3cret")

	cfg, err := decode(v)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 5000, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, "project-documents", cfg.Storage.BucketDocuments)
	assert.Equal(t, time.Hour, cfg.Security.ResetTicketTTL)
	assert.Equal(t, "projecthub:events", cfg.Redis.Stream)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowCORSOrigins)
}

func TestDecodeRequiresSecret(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	_, err := decode(v)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestDecodeSplitsCommaSeparatedOrigins(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("security.jwtsecret", "s3cret")
	v.Set("allowcorsorigins", "https://a.example,https://b.example")

	cfg, err := decode(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowCORSOrigins)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PROJECTHUB_SECURITY_JWTSECRET", "from-env")
	t.Setenv("PROJECTHUB_HTTP_PORT", "8081")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Security.JWTSecret)
	assert.Equal(t, 8081, cfg.HTTP.Port)
}
