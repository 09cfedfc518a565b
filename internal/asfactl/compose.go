package asfactl

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

const (
	composeFileName = "docker-compose.yml"

	AppService   = "app"
	ProxyService = "proxy"
	DBService    = "db"

	proxyImage = "nginx:1.27-alpine"

	containerWebroot       = "/var/www/certbot"
	containerLetsEncrypt   = "/etc/letsencrypt"
	containerCloudflareDir = "/etc/ssl/cloudflare"
)

// composeProject builds the stack definition for cfg. Only TLS variants
// publish 443 and mount certificate directories into the proxy.
func composeProject(cfg DeploymentConfig, s Settings) *types.Project {
	app := types.ServiceConfig{
		Name:    AppService,
		Image:   cfg.Image,
		Restart: types.RestartPolicyUnlessStopped,
		Volumes: []types.ServiceVolumeConfig{{
			Type:   types.VolumeTypeBind,
			Source: filepath.Join(cfg.AppDir, "backups"),
			Target: "/app/backups",
		}},
	}

	proxy := types.ServiceConfig{
		Name:    ProxyService,
		Image:   proxyImage,
		Restart: types.RestartPolicyUnlessStopped,
		Ports: []types.ServicePortConfig{{
			Target:    80,
			Published: "80",
		}},
		Volumes: []types.ServiceVolumeConfig{
			{
				Type:     types.VolumeTypeBind,
				Source:   filepath.Join(cfg.AppDir, "nginx", "conf.d"),
				Target:   "/etc/nginx/conf.d",
				ReadOnly: true,
			},
			{
				Type:     types.VolumeTypeBind,
				Source:   filepath.Join(cfg.AppDir, "certbot-www"),
				Target:   containerWebroot,
				ReadOnly: true,
			},
		},
		DependsOn: types.DependsOnConfig{
			AppService: {Condition: types.ServiceConditionStarted, Required: true},
		},
	}

	if cfg.SSLMode.TLS() {
		proxy.Ports = append(proxy.Ports, types.ServicePortConfig{Target: 443, Published: "443"})
		certSource, certTarget := s.LetsEncryptDir, containerLetsEncrypt
		if cfg.SSLMode == SSLCloudflareOrigin {
			certSource, certTarget = s.CloudflareDir, containerCloudflareDir
		}
		proxy.Volumes = append(proxy.Volumes, types.ServiceVolumeConfig{
			Type:     types.VolumeTypeBind,
			Source:   certSource,
			Target:   certTarget,
			ReadOnly: true,
		})
	}

	return &types.Project{
		Name:       s.Project,
		WorkingDir: cfg.AppDir,
		Services: types.Services{
			AppService:   app,
			ProxyService: proxy,
		},
	}
}

// renderCompose marshals the project and overlays the keys the compose
// model is not used for.
func renderCompose(cfg DeploymentConfig, s Settings) ([]byte, error) {
	base, err := composeProject(cfg, s).MarshalYAML()
	if err != nil {
		return nil, fmt.Errorf("marshal compose project: %w", err)
	}

	merged := map[string]any{}
	if err := yaml.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("parse compose project: %w", err)
	}

	overlay := map[string]any{
		"services": map[string]any{
			AppService: map[string]any{
				"env_file": []any{filepath.Join(cfg.AppDir, envFileName)},
			},
		},
		"x-asfactl": map[string]any{
			"domain":   cfg.Domain,
			"ssl_mode": string(cfg.SSLMode),
		},
	}
	deepMerge(merged, overlay)

	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode compose manifest: %w", err)
	}
	return out, nil
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		existing, exists := dst[k]
		if !exists {
			dst[k] = v
			continue
		}

		dstMap, dstMapOK := existing.(map[string]any)
		srcMap, srcMapOK := v.(map[string]any)
		if dstMapOK && srcMapOK {
			deepMerge(dstMap, srcMap)
			continue
		}

		dstSlice, dstSliceOK := existing.([]any)
		srcSlice, srcSliceOK := v.([]any)
		if dstSliceOK && srcSliceOK {
			dst[k] = append(dstSlice, srcSlice...)
			continue
		}

		dst[k] = v
	}
}

func composeBaseArgs(cfg DeploymentConfig, s Settings) []string {
	return []string{
		"compose",
		"-f", filepath.Join(cfg.AppDir, composeFileName),
		"-p", s.Project,
	}
}

func (h *Host) compose(cfg DeploymentConfig, args ...string) Command {
	return Command{
		Name: h.Settings.DockerBin,
		Args: append(composeBaseArgs(cfg, h.Settings), args...),
		Dir:  cfg.AppDir,
	}
}

// composeServices lists the services the manifest defines.
func (h *Host) composeServices(ctx context.Context, cfg DeploymentConfig) ([]string, error) {
	out, err := h.Runner.Run(ctx, h.compose(cfg, "config", "--services"))
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

// runningServices lists services with a running container.
func (h *Host) runningServices(ctx context.Context, cfg DeploymentConfig) ([]string, error) {
	out, err := h.Runner.Run(ctx, h.compose(cfg, "ps", "--services", "--filter", "status=running"))
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

func (h *Host) serviceRunning(ctx context.Context, cfg DeploymentConfig, service string) bool {
	out, err := h.Runner.Run(ctx, h.compose(cfg, "ps", "-q", service))
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

func (h *Host) serviceDefined(ctx context.Context, cfg DeploymentConfig, service string) bool {
	services, err := h.composeServices(ctx, cfg)
	if err != nil {
		return false
	}
	return contains(services, service)
}
