package asfactl

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
)

// Credentials authenticate against a registry for a single run.
type Credentials struct {
	Username string
	Password string
}

// ImageInspector resolves image references against their registry.
type ImageInspector interface {
	// RemoteDigest returns the manifest digest of ref. Nil creds use the
	// local docker keychain; Anonymous forces an unauthenticated request.
	RemoteDigest(ctx context.Context, ref string, creds *Credentials) (string, error)
	// HasCredentials reports whether the local keychain can authenticate
	// against registry.
	HasCredentials(registry string) bool
}

// Anonymous requests unauthenticated registry access.
var Anonymous = &Credentials{}

type RegistryInspector struct {
	Keychain authn.Keychain
}

func NewRegistryInspector() *RegistryInspector {
	return &RegistryInspector{Keychain: authn.DefaultKeychain}
}

func (r *RegistryInspector) RemoteDigest(ctx context.Context, ref string, creds *Credentials) (string, error) {
	opts := []crane.Option{crane.WithContext(ctx)}
	switch {
	case creds == nil:
		opts = append(opts, crane.WithAuthFromKeychain(r.Keychain))
	case creds.Username == "":
		opts = append(opts, crane.WithAuth(authn.Anonymous))
	default:
		opts = append(opts, crane.WithAuth(&authn.Basic{Username: creds.Username, Password: creds.Password}))
	}
	digest, err := crane.Digest(ref, opts...)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", ref, err)
	}
	return digest, nil
}

func (r *RegistryInspector) HasCredentials(registry string) bool {
	reg, err := name.NewRegistry(registry)
	if err != nil {
		return false
	}
	auth, err := r.Keychain.Resolve(reg)
	if err != nil || auth == authn.Anonymous {
		return false
	}
	cfg, err := auth.Authorization()
	return err == nil && (cfg.Username != "" || cfg.IdentityToken != "" || cfg.RegistryToken != "" || cfg.Auth != "")
}

// RegistryHost returns the registry an image reference points at, as the
// docker CLI expects it for login.
func RegistryHost(ref string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("%w: image %q: %v", ErrInvalidConfig, ref, err)
	}
	return parsed.Context().RegistryStr(), nil
}

// localRepoDigest extracts the digest docker recorded for ref's repository
// from `docker image inspect --format {{json .RepoDigests}}` style output.
func localRepoDigest(ref string, repoDigests []string) string {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return ""
	}
	repo := parsed.Context().Name()
	short := parsed.Context().RepositoryStr()
	for _, rd := range repoDigests {
		at := strings.LastIndex(rd, "@")
		if at < 0 {
			continue
		}
		prefix := rd[:at]
		if prefix == repo || prefix == short || strings.HasSuffix(repo, "/"+prefix) {
			return rd[at+1:]
		}
	}
	return ""
}
