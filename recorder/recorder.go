// Package recorder persists episode traces produced by a comparison.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"sync"

	"github.com/zeu5/maternal-rl/types"
	"github.com/zeu5/maternal-rl/util"
)

// FileRecorder appends every episode as a line of JSON to
// <dir>/<experiment>_<run>.jsonl
type FileRecorder struct {
	dir string
	mtx sync.Mutex
}

var _ types.Recorder = &FileRecorder{}

func NewFileRecorder(dir string) (*FileRecorder, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &FileRecorder{dir: dir}, nil
}

// Path of the file holding the episodes of experiment in run
func (f *FileRecorder) Path(experiment string, run int) string {
	return path.Join(f.dir, experiment+"_"+strconv.Itoa(run)+".jsonl")
}

func (f *FileRecorder) Record(ctx context.Context, r *types.EpisodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return util.AppendJSONLine(f.Path(r.Experiment, r.Run), r)
}

func (f *FileRecorder) Close() error {
	return nil
}

// Multi fans every record out to all of its recorders
type Multi []types.Recorder

var _ types.Recorder = Multi{}

func (m Multi) Record(ctx context.Context, r *types.EpisodeRecord) error {
	var errs []error
	for _, rec := range m {
		if err := rec.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, rec := range m {
		if err := rec.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing recorders: %w", errors.Join(errs...))
	}
	return nil
}
