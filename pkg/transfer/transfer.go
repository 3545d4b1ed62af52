// Package transfer implements the copy-only transfer primitive that sync
// tasks are built on. A copy adds files that are new at the source and, in
// update-only mode, replaces destination files that are older than the
// source. It never deletes anything at the destination.
package transfer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
)

// Options tunes a single copy.
type Options struct {
	// UpdateOnly skips files whose destination copy is the same age or
	// newer than the source.
	UpdateOnly bool

	// MaxAge excludes source files last modified longer ago than this.
	// Zero means no limit.
	MaxAge time.Duration

	// DryRun reports what would be copied without changing anything.
	DryRun bool
}

// Transferer copies files from a source to a destination and returns the
// transcript of the copy. The transcript is in rclone's log format so that
// CountTransferred can read it regardless of the backend.
type Transferer interface {
	Copy(ctx context.Context, src, dst string, opts Options) (string, error)

	// Check returns an error if the transferer can't run at all, e.g.
	// because an external tool is missing.
	Check(ctx context.Context) error
}

// New returns the Transferer selected by cfg.Backend.
func New(cfg config.Config, fs afero.Fs, clock clockwork.Clock) (Transferer, error) {
	switch cfg.Backend {
	case config.BackendRclone:
		return NewRclone(cfg.Rclone, cfg.RcloneConfig), nil
	case config.BackendLocal:
		return NewLocal(fs, clock), nil
	}
	return nil, errors.Newf("unknown transfer backend %q", cfg.Backend)
}
