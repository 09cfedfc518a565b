package objectstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Env keys read from the application's environment file.
const (
	EnvEndpoint  = "BACKUP_S3_ENDPOINT"
	EnvBucket    = "BACKUP_S3_BUCKET"
	EnvAccessKey = "BACKUP_S3_ACCESS_KEY"
	EnvSecretKey = "BACKUP_S3_SECRET_KEY"
	EnvRegion    = "BACKUP_S3_REGION"
	EnvPrefix    = "BACKUP_S3_PREFIX"
	EnvUseSSL    = "BACKUP_S3_USE_SSL"
)

// ErrNotConfigured means the environment carries no usable object store
// settings.
var ErrNotConfigured = errors.New("object store not configured")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// ConfigFromEnv builds a Config from env-file values. An endpoint may carry
// an http:// or https:// scheme, which then decides UseSSL.
func ConfigFromEnv(env map[string]string) (Config, error) {
	endpoint := strings.TrimSpace(env[EnvEndpoint])
	if endpoint == "" {
		return Config{}, ErrNotConfigured
	}
	useSSL := true
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
		useSSL = false
	}
	if v := strings.TrimSpace(env[EnvUseSSL]); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvUseSSL, err)
		}
		useSSL = b
	}

	region := strings.TrimSpace(env[EnvRegion])
	if region == "" {
		region = "us-east-1"
	}
	cfg := Config{
		Endpoint:  strings.TrimSuffix(endpoint, "/"),
		AccessKey: strings.TrimSpace(env[EnvAccessKey]),
		SecretKey: strings.TrimSpace(env[EnvSecretKey]),
		Region:    region,
		Bucket:    strings.TrimSpace(env[EnvBucket]),
		Prefix:    strings.TrimLeft(strings.TrimSpace(env[EnvPrefix]), "/"),
		UseSSL:    useSSL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// Key is the object name a local backup file is uploaded under.
func (c Config) Key(name string) string {
	if c.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(c.Prefix, "/") + "/" + name
}
