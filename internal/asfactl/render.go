package asfactl

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

//go:embed templates
var embeddedTemplates embed.FS

type ArtifactKind string

const (
	KindEnvFile         ArtifactKind = "env-file"
	KindReverseProxy    ArtifactKind = "reverse-proxy"
	KindComposeManifest ArtifactKind = "compose-manifest"
	KindSystemdUnit     ArtifactKind = "systemd-unit"
)

// ArtifactKinds is the render order used by the render-artifacts step.
var ArtifactKinds = []ArtifactKind{KindEnvFile, KindReverseProxy, KindComposeManifest, KindSystemdUnit}

// RenderedArtifact is one generated file and the variant that produced it.
type RenderedArtifact struct {
	Kind     ArtifactKind
	Variant  string
	Path     string
	Mode     os.FileMode
	Content  []byte
	Checksum string
}

type variantKey struct {
	kind ArtifactKind
	mode SSLMode
}

type variant struct {
	name     string
	template string
	build    func(cfg DeploymentConfig, s Settings) ([]byte, error)
}

var (
	envVariant        = variant{name: "env", template: "env.tmpl"}
	unitVariant       = variant{name: "systemd", template: "stack.service.tmpl"}
	composeVariant    = variant{name: "compose", build: renderCompose}
	composeTLSVariant = variant{name: "compose-tls", build: renderCompose}
)

// variants holds exactly one entry per (kind, ssl mode) pair.
var variants = map[variantKey]variant{
	{KindEnvFile, SSLLetsEncrypt}:      envVariant,
	{KindEnvFile, SSLCloudflareOrigin}: envVariant,
	{KindEnvFile, SSLHTTPOnly}:         envVariant,

	{KindReverseProxy, SSLLetsEncrypt}:      {name: "nginx-letsencrypt", template: "nginx-letsencrypt.conf.tmpl"},
	{KindReverseProxy, SSLCloudflareOrigin}: {name: "nginx-cloudflare-origin", template: "nginx-cloudflare.conf.tmpl"},
	{KindReverseProxy, SSLHTTPOnly}:         {name: "nginx-http-only", template: "nginx-http.conf.tmpl"},

	{KindComposeManifest, SSLLetsEncrypt}:      composeTLSVariant,
	{KindComposeManifest, SSLCloudflareOrigin}: composeTLSVariant,
	{KindComposeManifest, SSLHTTPOnly}:         composeVariant,

	{KindSystemdUnit, SSLLetsEncrypt}:      unitVariant,
	{KindSystemdUnit, SSLCloudflareOrigin}: unitVariant,
	{KindSystemdUnit, SSLHTTPOnly}:         unitVariant,
}

// Renderer turns a DeploymentConfig into artifacts. Render is pure;
// WriteArtifact is the only method touching the filesystem.
type Renderer struct {
	Settings  Settings
	Templates fs.FS
	Now       func() time.Time
}

// NewRenderer uses the embedded templates unless Settings.TemplatesDir
// points at an override directory.
func NewRenderer(s Settings) *Renderer {
	r := &Renderer{Settings: s, Now: time.Now}
	if dir := strings.TrimSpace(s.TemplatesDir); dir != "" && DirExists(dir) {
		r.Templates = os.DirFS(dir)
		return r
	}
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		panic(err)
	}
	r.Templates = sub
	return r
}

// ArtifactPath is where kind lives for cfg.
func ArtifactPath(cfg DeploymentConfig, s Settings, kind ArtifactKind) string {
	switch kind {
	case KindEnvFile:
		return filepath.Join(cfg.AppDir, envFileName)
	case KindReverseProxy:
		return filepath.Join(cfg.AppDir, "nginx", "conf.d", "app.conf")
	case KindComposeManifest:
		return filepath.Join(cfg.AppDir, composeFileName)
	case KindSystemdUnit:
		return filepath.Join(cfg.AppDir, "systemd", s.UnitName())
	}
	return ""
}

func artifactMode(kind ArtifactKind) os.FileMode {
	switch kind {
	case KindEnvFile:
		return 0o600
	case KindSystemdUnit:
		return 0o644
	}
	return 0o640
}

func (r *Renderer) Render(cfg DeploymentConfig, kind ArtifactKind) (RenderedArtifact, error) {
	v, ok := variants[variantKey{kind, cfg.SSLMode}]
	if !ok {
		return RenderedArtifact{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedVariant, kind, cfg.SSLMode)
	}

	var content []byte
	var err error
	if v.build != nil {
		content, err = v.build(cfg, r.Settings)
	} else {
		content, err = r.renderTemplate(v.template, cfg.RenderData(r.Settings))
	}
	if err != nil {
		return RenderedArtifact{}, fmt.Errorf("render %s (%s): %w", kind, v.name, err)
	}

	return RenderedArtifact{
		Kind:     kind,
		Variant:  v.name,
		Path:     ArtifactPath(cfg, r.Settings, kind),
		Mode:     artifactMode(kind),
		Content:  content,
		Checksum: checksum(content),
	}, nil
}

// RenderAll renders every kind in ArtifactKinds order.
func (r *Renderer) RenderAll(cfg DeploymentConfig) ([]RenderedArtifact, error) {
	out := make([]RenderedArtifact, 0, len(ArtifactKinds))
	for _, kind := range ArtifactKinds {
		art, err := r.Render(cfg, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, art)
	}
	return out, nil
}

func (r *Renderer) renderTemplate(name string, data RenderData) ([]byte, error) {
	raw, err := fs.ReadFile(r.Templates, name)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
