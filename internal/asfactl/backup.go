package asfactl

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/paulmbui20/asfa-deploy/internal/objectstore"
)

// BackupConfirmer checks that a local backup reached the object store.
type BackupConfirmer interface {
	Confirm(ctx context.Context, name string) (objectstore.ObjectInfo, error)
}

// ConfirmerFactory builds a confirmer from the application's env values.
type ConfirmerFactory func(env map[string]string) (BackupConfirmer, error)

func minioConfirmer(env map[string]string) (BackupConfirmer, error) {
	cfg, err := objectstore.ConfigFromEnv(env)
	if err != nil {
		return nil, err
	}
	return objectstore.NewConfirmer(cfg)
}

type BackupResult struct {
	// Files are the new files the application export left in backups/.
	Files  []string
	DBDump string
	Remote *objectstore.ObjectInfo
	// ConfirmErr is set when the upload could not be confirmed. The local
	// backup still exists.
	ConfirmErr error
}

func (r BackupResult) Confirmed() bool {
	return r.Remote != nil && r.ConfirmErr == nil
}

func backupDir(cfg DeploymentConfig) string {
	return filepath.Join(cfg.AppDir, "backups")
}

// Backup triggers the application export inside the app container, dumps
// a running db service, then confirms the export landed in the object
// store. A failed confirmation is reported in the result, not returned.
func (o *Ops) Backup(ctx context.Context) (BackupResult, error) {
	h, cfg := o.Host, o.Config
	var res BackupResult

	dir := backupDir(cfg)
	if err := ensureDir(dir, 0o750); err != nil {
		return res, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	before, err := snapshotDir(dir)
	if err != nil {
		return res, err
	}

	if !h.serviceRunning(ctx, cfg, AppService) {
		return res, fmt.Errorf("service %s is not running", AppService)
	}
	export := h.compose(cfg, "exec", "-T", AppService, h.Settings.BackupCommand)
	export.Stream = true
	if _, err := h.Runner.Run(ctx, export); err != nil {
		return res, fmt.Errorf("application export: %w", err)
	}

	after, err := snapshotDir(dir)
	if err != nil {
		return res, err
	}
	res.Files = newFiles(before, after)
	if len(res.Files) == 0 {
		return res, fmt.Errorf("application export left no new file in %s", dir)
	}
	for _, f := range res.Files {
		h.printf("wrote %s\n", filepath.Join(dir, f))
	}

	if dump, err := o.dumpDatabase(ctx, dir); err != nil {
		return res, err
	} else if dump != "" {
		res.DBDump = dump
		h.printf("wrote %s\n", dump)
	}

	res.Remote, res.ConfirmErr = o.confirm(ctx, res.Files[len(res.Files)-1])
	if res.ConfirmErr != nil {
		h.logger().Warn("backup upload not confirmed", "err", res.ConfirmErr)
		h.printf("[WARN] upload not confirmed: %v\n", res.ConfirmErr)
	} else {
		h.printf("[ OK ] confirmed %s\n", res.Remote)
	}
	return res, nil
}

func (o *Ops) confirm(ctx context.Context, name string) (*objectstore.ObjectInfo, error) {
	path := ArtifactPath(o.Config, o.Host.Settings, KindEnvFile)
	env, err := ReadEnvFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for k, v := range env {
		if v == Placeholder {
			delete(env, k)
		}
	}
	factory := o.NewConfirmer
	if factory == nil {
		factory = minioConfirmer
	}
	confirmer, err := factory(env)
	if err != nil {
		return nil, err
	}
	info, err := confirmer.Confirm(ctx, name)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// dumpDatabase gzips pg_dumpall from the db service when the stack defines
// one and it is running. It returns the dump path, or "" when skipped.
func (o *Ops) dumpDatabase(ctx context.Context, dir string) (string, error) {
	h, cfg := o.Host, o.Config
	if !h.serviceDefined(ctx, cfg, DBService) {
		return "", nil
	}
	if !h.serviceRunning(ctx, cfg, DBService) {
		h.printf("skip %s dump (service not running)\n", DBService)
		return "", nil
	}

	outPath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql.gz", DBService, h.now().Format(backupTimeFormat)))
	f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create dump file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	c := h.compose(cfg, "exec", "-T", DBService, "sh", "-c", `pg_dumpall -U "$POSTGRES_USER"`)
	c.Stdout = gz
	if _, err := h.Runner.Run(ctx, c); err != nil {
		gz.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("%s dump: %w", DBService, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("%s gzip close: %w", DBService, err)
	}
	return outPath, f.Sync()
}

func snapshotDir(dir string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	out := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = info.ModTime()
	}
	return out, nil
}

// newFiles returns names added or modified between two snapshots, oldest
// first.
func newFiles(before, after map[string]time.Time) []string {
	var names []string
	for name, mod := range after {
		if prev, ok := before[name]; !ok || mod.After(prev) {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := after[names[i]], after[names[j]]
		if a.Equal(b) {
			return names[i] < names[j]
		}
		return a.Before(b)
	})
	return names
}
