package asfactl

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultSettingsFile is preloaded into the environment when present.
const DefaultSettingsFile = "/etc/asfactl/asfactl.env"

// Settings are host-level knobs read from ASFACTL_* variables. They are not
// part of the persisted deployment record.
type Settings struct {
	AppDir         string        `env:"APP_DIR" envDefault:"/opt/apps/asfa"`
	Project        string        `env:"PROJECT" envDefault:"asfa"`
	DockerBin      string        `env:"DOCKER_BIN" envDefault:"docker"`
	SystemdDir     string        `env:"SYSTEMD_DIR" envDefault:"/etc/systemd/system"`
	LetsEncryptDir string        `env:"LETSENCRYPT_DIR" envDefault:"/etc/letsencrypt"`
	CloudflareDir  string        `env:"CLOUDFLARE_CERT_DIR" envDefault:"/etc/ssl/cloudflare"`
	TemplatesDir   string        `env:"TEMPLATES"`
	UpdateInterval time.Duration `env:"UPDATE_INTERVAL" envDefault:"24h"`
	StepTimeout    time.Duration `env:"STEP_TIMEOUT" envDefault:"10m"`
	NetworkTimeout time.Duration `env:"NETWORK_TIMEOUT" envDefault:"30m"`
	BackupCommand  string        `env:"BACKUP_COMMAND" envDefault:"/app/scripts/backup.sh"`
	MetricsFile    string        `env:"METRICS_TEXTFILE"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

// UnitName is the systemd unit managing the compose stack.
func (s Settings) UnitName() string {
	return s.Project + ".service"
}

// LoadSettings reads ASFACTL_* variables after preloading path (if it exists)
// with godotenv. Variables already set in the environment win.
func LoadSettings(path string) (Settings, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: "ASFACTL_"}); err != nil {
		return Settings{}, fmt.Errorf("%w: parse settings: %v", ErrInvalidConfig, err)
	}
	return s, nil
}

// NewLogger builds the process logger from settings.
func NewLogger(s Settings, verbose bool) *slog.Logger {
	return NewLoggerTo(os.Stderr, s, verbose)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(w io.Writer, s Settings, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch s.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
