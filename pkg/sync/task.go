package sync

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sidkik/vaultsync/pkg/errors"
	"github.com/sidkik/vaultsync/pkg/transfer"
)

// Direction is which way a Task copies files.
type Direction string

const (
	// Download copies from the remote into the vault.
	Download Direction = "download"

	// Upload copies from the vault to the remote.
	Upload Direction = "upload"
)

// A Task is a single directional copy. Tasks are built from the
// configuration at the start of each run and never persisted.
type Task struct {
	// Label names the task in log lines, e.g. "receipts".
	Label string

	Direction   Direction
	Source      string
	Destination string

	// MaxAge excludes source files older than this. Zero means no limit.
	MaxAge time.Duration
}

// Execute runs the task and returns the number of files it transferred, or
// would have transferred in a dry run.
//
// Problems that only affect this task's inputs are absorbed: an upload
// whose local directory doesn't exist transfers nothing, and a transcript
// that can't be read counts as zero. A failed transfer is returned as an
// error.
func (task Task) Execute(ctx context.Context, tr transfer.Transferer,
	log logrus.FieldLogger, dryRun bool) (int, error) {
	log = log.WithField("task", task.Label)

	switch task.Direction {
	case Upload:
		if _, err := fs.Stat(task.Source); err != nil {
			if os.IsNotExist(err) {
				log.WithField("path", task.Source).Warn(
					"Local directory does not exist. Nothing to upload")
				return 0, nil
			}
			return 0, errors.WithContext(err, "stat source")
		}
	case Download:
		if !dryRun {
			if err := fs.MkdirAll(task.Destination, 0755); err != nil {
				return 0, errors.WithContext(err, "create destination")
			}
		}
	default:
		return 0, errors.Newf("unknown direction %q", task.Direction)
	}

	log.WithFields(logrus.Fields{
		"src": task.Source,
		"dst": task.Destination,
	}).Debug("Starting copy")

	transcript, err := tr.Copy(ctx, task.Source, task.Destination, transfer.Options{
		UpdateOnly: true,
		MaxAge:     task.MaxAge,
		DryRun:     dryRun,
	})
	if err != nil {
		return 0, errors.WithContext(err, string(task.Direction))
	}

	count, ok := transfer.CountTransferred(transcript)
	if !ok {
		log.Warn("Could not determine number of transferred files. Counting zero")
		return 0, nil
	}
	return count, nil
}
