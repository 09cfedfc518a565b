package asfactl

import (
	"context"
	"fmt"
)

// Recorder keeps a history of pipeline runs.
type Recorder interface {
	Record(ctx context.Context, rep Report) error
}

// Deployer ties the config store, the pipeline and run bookkeeping together.
type Deployer struct {
	Host     *Host
	Pipeline *Pipeline
	Recorder Recorder
}

func NewDeployer(h *Host) *Deployer {
	return &Deployer{Host: h, Pipeline: NewPipeline(h)}
}

// StoreFor returns the store the input points at: an explicit app dir
// wins over the host setting.
func StoreFor(in PartialConfig, s Settings) *Store {
	dir := s.AppDir
	if in.AppDir != nil && *in.AppDir != "" {
		dir = *in.AppDir
	}
	return NewStore(dir)
}

// Prepare merges in over the persisted config without touching the host.
func (d *Deployer) Prepare(in PartialConfig) (DeploymentConfig, error) {
	existing, err := StoreFor(in, d.Host.Settings).LoadOptional()
	if err != nil {
		return DeploymentConfig{}, err
	}
	return Merge(existing, in)
}

// Deploy runs the full pipeline under the app directory lock. The merged
// config is persisted only when the run completes; every run is recorded.
func (d *Deployer) Deploy(ctx context.Context, in PartialConfig, secrets Secrets) (Report, error) {
	cfg, err := d.Prepare(in)
	if err != nil {
		return Report{}, err
	}

	lock, err := AcquireLock(cfg.AppDir, d.Host.logger())
	if err != nil {
		return Report{}, err
	}
	defer lock.Release()

	rep := d.Pipeline.Run(ctx, cfg, secrets)
	if rep.Outcome == OutcomeCompleted {
		if err := NewStore(cfg.AppDir).Save(rep.Config); err != nil {
			rep.Outcome = OutcomeAborted
			rep.Err = fmt.Errorf("save config: %w", err)
		}
	}
	d.record(ctx, rep)
	return rep, rep.Err
}

func (d *Deployer) record(ctx context.Context, rep Report) {
	log := d.Host.logger()
	ctx = context.WithoutCancel(ctx)
	if d.Recorder != nil {
		if err := d.Recorder.Record(ctx, rep); err != nil {
			log.Warn("record run history", "err", err)
		}
	}
	if path := d.Host.Settings.MetricsFile; path != "" {
		if err := WriteRunMetrics(path, d.Host.Settings.Project, rep); err != nil {
			log.Warn("write metrics textfile", "path", path, "err", err)
		}
	}
}
