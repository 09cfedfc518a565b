package asfactl

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type SSLMode string

const (
	SSLLetsEncrypt      SSLMode = "letsencrypt"
	SSLCloudflareOrigin SSLMode = "cloudflare-origin"
	SSLHTTPOnly         SSLMode = "http-only"
)

// SSLModes lists every supported mode in display order.
var SSLModes = []SSLMode{SSLLetsEncrypt, SSLCloudflareOrigin, SSLHTTPOnly}

func ParseSSLMode(s string) (SSLMode, error) {
	mode := SSLMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range SSLModes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: ssl mode %q (want letsencrypt, cloudflare-origin or http-only)", ErrInvalidConfig, s)
}

// TLS reports whether the mode terminates HTTPS at the proxy.
func (m SSLMode) TLS() bool {
	return m == SSLLetsEncrypt || m == SSLCloudflareOrigin
}

const (
	DefaultAppDir     = "/opt/apps/asfa"
	DefaultSSLMode    = SSLLetsEncrypt
	DefaultImage      = "ghcr.io/asfa/asfa:latest"
	DefaultRepoBranch = "main"
	DefaultAppPort    = 3000
	DefaultDeployUser = "deployer"
)

// Persisted keys in .deployment_config.
const (
	keyDomain              = "DOMAIN"
	keyRegistryUser        = "REGISTRY_USER"
	keyAppDir              = "APP_DIR"
	keySSLMode             = "SSL_MODE"
	keyEmail               = "EMAIL"
	keyFirewallEnabled     = "FIREWALL_ENABLED"
	keyDeployerUserCreated = "DEPLOYER_USER_CREATED"
	keyImage               = "IMAGE"
	keyRepoURL             = "REPO_URL"
	keyRepoBranch          = "REPO_BRANCH"
	keyAppPort             = "APP_PORT"
	keyDeployUser          = "DEPLOY_USER"
)

var (
	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*\.)+[a-zA-Z]{2,}$`)
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	userRegex   = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
)

func ValidDomain(s string) bool { return domainRegex.MatchString(s) }

func ValidEmail(s string) bool { return emailRegex.MatchString(s) }

// DeploymentConfig is the persisted deployment record.
type DeploymentConfig struct {
	Domain              string
	RegistryUser        string
	AppDir              string
	SSLMode             SSLMode
	Email               string
	FirewallEnabled     bool
	DeployerUserCreated bool

	Image      string
	RepoURL    string
	RepoBranch string
	AppPort    int
	DeployUser string
}

// PartialConfig is operator input; nil fields were not supplied.
type PartialConfig struct {
	Domain              *string
	RegistryUser        *string
	AppDir              *string
	SSLMode             *SSLMode
	Email               *string
	FirewallEnabled     *bool
	DeployerUserCreated *bool

	Image      *string
	RepoURL    *string
	RepoBranch *string
	AppPort    *int
	DeployUser *string
}

// Merge resolves every field as input > existing > default. Required fields
// left empty produce an *IncompleteConfigError naming them; other invariant
// violations wrap ErrInvalidConfig.
func Merge(existing *DeploymentConfig, in PartialConfig) (DeploymentConfig, error) {
	var prev DeploymentConfig
	hasPrev := existing != nil
	if hasPrev {
		prev = *existing
	}

	pickString := func(input *string, old, def string) string {
		if input != nil {
			return strings.TrimSpace(*input)
		}
		if hasPrev && old != "" {
			return old
		}
		return def
	}

	cfg := DeploymentConfig{
		Domain:       strings.ToLower(pickString(in.Domain, prev.Domain, "")),
		RegistryUser: pickString(in.RegistryUser, prev.RegistryUser, ""),
		AppDir:       pickString(in.AppDir, prev.AppDir, DefaultAppDir),
		Email:        pickString(in.Email, prev.Email, ""),
		Image:        pickString(in.Image, prev.Image, DefaultImage),
		RepoURL:      pickString(in.RepoURL, prev.RepoURL, ""),
		RepoBranch:   pickString(in.RepoBranch, prev.RepoBranch, DefaultRepoBranch),
		DeployUser:   pickString(in.DeployUser, prev.DeployUser, DefaultDeployUser),
	}

	switch {
	case in.SSLMode != nil:
		cfg.SSLMode = *in.SSLMode
	case hasPrev && prev.SSLMode != "":
		cfg.SSLMode = prev.SSLMode
	default:
		cfg.SSLMode = DefaultSSLMode
	}

	switch {
	case in.FirewallEnabled != nil:
		cfg.FirewallEnabled = *in.FirewallEnabled
	case hasPrev:
		cfg.FirewallEnabled = prev.FirewallEnabled
	default:
		cfg.FirewallEnabled = true
	}

	switch {
	case in.DeployerUserCreated != nil:
		cfg.DeployerUserCreated = *in.DeployerUserCreated
	case hasPrev:
		cfg.DeployerUserCreated = prev.DeployerUserCreated
	}

	switch {
	case in.AppPort != nil:
		cfg.AppPort = *in.AppPort
	case hasPrev && prev.AppPort != 0:
		cfg.AppPort = prev.AppPort
	default:
		cfg.AppPort = DefaultAppPort
	}

	if missing := cfg.MissingFields(); len(missing) > 0 {
		return cfg, &IncompleteConfigError{Fields: missing}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MissingFields names the required fields that are still empty.
func (c DeploymentConfig) MissingFields() []string {
	var missing []string
	if c.Domain == "" {
		missing = append(missing, "domain")
	}
	if c.SSLMode == SSLLetsEncrypt && c.Email == "" {
		missing = append(missing, "email")
	}
	return missing
}

func (c DeploymentConfig) Validate() error {
	if missing := c.MissingFields(); len(missing) > 0 {
		return &IncompleteConfigError{Fields: missing}
	}
	if !ValidDomain(c.Domain) {
		return fmt.Errorf("%w: domain %q", ErrInvalidConfig, c.Domain)
	}
	if c.Email != "" && !ValidEmail(c.Email) {
		return fmt.Errorf("%w: email %q", ErrInvalidConfig, c.Email)
	}
	if _, err := ParseSSLMode(string(c.SSLMode)); err != nil {
		return err
	}
	if !filepath.IsAbs(c.AppDir) {
		return fmt.Errorf("%w: app directory %q must be absolute", ErrInvalidConfig, c.AppDir)
	}
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return fmt.Errorf("%w: app port %d", ErrInvalidConfig, c.AppPort)
	}
	if !userRegex.MatchString(c.DeployUser) {
		return fmt.Errorf("%w: deploy user %q", ErrInvalidConfig, c.DeployUser)
	}
	if strings.TrimSpace(c.Image) == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidConfig)
	}
	return nil
}

func (c DeploymentConfig) toMap() map[string]string {
	return map[string]string{
		keyDomain:              c.Domain,
		keyRegistryUser:        c.RegistryUser,
		keyAppDir:              c.AppDir,
		keySSLMode:             string(c.SSLMode),
		keyEmail:               c.Email,
		keyFirewallEnabled:     strconv.FormatBool(c.FirewallEnabled),
		keyDeployerUserCreated: strconv.FormatBool(c.DeployerUserCreated),
		keyImage:               c.Image,
		keyRepoURL:             c.RepoURL,
		keyRepoBranch:          c.RepoBranch,
		keyAppPort:             strconv.Itoa(c.AppPort),
		keyDeployUser:          c.DeployUser,
	}
}

func configFromMap(m map[string]string) (DeploymentConfig, error) {
	cfg := DeploymentConfig{
		Domain:       m[keyDomain],
		RegistryUser: m[keyRegistryUser],
		AppDir:       m[keyAppDir],
		SSLMode:      SSLMode(m[keySSLMode]),
		Email:        m[keyEmail],
		Image:        m[keyImage],
		RepoURL:      m[keyRepoURL],
		RepoBranch:   m[keyRepoBranch],
		DeployUser:   m[keyDeployUser],
	}
	var err error
	if cfg.FirewallEnabled, err = parseBoolDefault(m[keyFirewallEnabled], true); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, keyFirewallEnabled, err)
	}
	if cfg.DeployerUserCreated, err = parseBoolDefault(m[keyDeployerUserCreated], false); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, keyDeployerUserCreated, err)
	}
	if v := m[keyAppPort]; v != "" {
		if cfg.AppPort, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, keyAppPort, err)
		}
	}
	return cfg, nil
}

func parseBoolDefault(v string, def bool) (bool, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

// RenderData is the template view of a config.
type RenderData struct {
	Project     string
	Domain      string
	Email       string
	Scheme      string
	AppDir      string
	AppPort     int
	Image       string
	Docker      string
	ComposeFile string
	EnvFile     string
	Placeholder string
}

func (c DeploymentConfig) RenderData(s Settings) RenderData {
	scheme := "http"
	if c.SSLMode.TLS() {
		scheme = "https"
	}
	return RenderData{
		Project:     s.Project,
		Domain:      c.Domain,
		Email:       c.Email,
		Scheme:      scheme,
		AppDir:      c.AppDir,
		AppPort:     c.AppPort,
		Image:       c.Image,
		Docker:      s.DockerBin,
		ComposeFile: filepath.Join(c.AppDir, composeFileName),
		EnvFile:     filepath.Join(c.AppDir, envFileName),
		Placeholder: Placeholder,
	}
}
