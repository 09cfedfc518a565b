package asfactl

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Host bundles the collaborators steps and operational verbs act through.
type Host struct {
	Runner   Runner
	Images   ImageInspector
	Settings Settings
	Logger   *slog.Logger
	Out      io.Writer
	Now      func() time.Time
}

// NewHost wires the real command runner and registry client.
func NewHost(s Settings, logger *slog.Logger) *Host {
	return &Host{
		Runner:   NewExecRunner(logger),
		Images:   NewRegistryInspector(),
		Settings: s,
		Logger:   logger,
		Out:      os.Stdout,
		Now:      time.Now,
	}
}

func (h *Host) now() time.Time {
	if h.Now == nil {
		return time.Now().UTC()
	}
	return h.Now().UTC()
}

func (h *Host) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h.Logger
}

func (h *Host) printf(format string, args ...any) {
	if h.Out == nil {
		return
	}
	fmt.Fprintf(h.Out, format, args...)
}

func (h *Host) renderer() *Renderer {
	r := NewRenderer(h.Settings)
	r.Now = h.now
	return r
}
