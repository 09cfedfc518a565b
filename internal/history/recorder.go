package history

import (
	"context"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

// FileRecorder opens the history database for each Record call, so the
// database is only created once the app directory exists.
type FileRecorder struct {
	Path string
}

var _ asfactl.Recorder = FileRecorder{}

func (f FileRecorder) Record(ctx context.Context, rep asfactl.Report) error {
	db, err := Open(f.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	return (&RunRepo{DB: db}).Record(ctx, rep)
}
