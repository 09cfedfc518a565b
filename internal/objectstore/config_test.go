package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	cfg, err := ConfigFromEnv(map[string]string{
		EnvEndpoint:  "https://s3.eu-central-1.amazonaws.com/",
		EnvBucket:    "asfa-backups",
		EnvAccessKey: "AKIA",
		EnvSecretKey: "secret",
		EnvPrefix:    "/asfa/",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3.eu-central-1.amazonaws.com", cfg.Endpoint)
	assert.True(t, cfg.UseSSL)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "asfa/backup-1.tar.gz", cfg.Key("backup-1.tar.gz"))
}

func TestConfigFromEnvPlainHTTP(t *testing.T) {
	cfg, err := ConfigFromEnv(map[string]string{
		EnvEndpoint:  "http://minio:9000",
		EnvBucket:    "b",
		EnvAccessKey: "a",
		EnvSecretKey: "s",
	})
	require.NoError(t, err)
	assert.False(t, cfg.UseSSL)
	assert.Equal(t, "minio:9000", cfg.Endpoint)
	assert.Equal(t, "x.gz", cfg.Key("x.gz"))
}

func TestConfigFromEnvNotConfigured(t *testing.T) {
	_, err := ConfigFromEnv(map[string]string{EnvBucket: "b"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "b",
		Region:    "us-east-1",
		Bucket:    "backups",
	}
	require.NoError(t, valid.Validate())

	withScheme := valid
	withScheme.Endpoint = "http://localhost:9000"
	assert.Error(t, withScheme.Validate())

	noBucket := valid
	noBucket.Bucket = ""
	assert.Error(t, noBucket.Validate())
}

func TestNewConfirmerRejectsInvalidConfig(t *testing.T) {
	_, err := NewConfirmer(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}
