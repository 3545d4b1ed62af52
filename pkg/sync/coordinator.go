package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
	"github.com/sidkik/vaultsync/pkg/lock"
	"github.com/sidkik/vaultsync/pkg/status"
	"github.com/sidkik/vaultsync/pkg/transfer"
)

var (
	// ErrAlreadyRunning is returned by Run when another run holds the lock.
	ErrAlreadyRunning = errors.New("another sync is already running")

	// errUnexpected is recorded in the status when a run panics.
	errUnexpected = errors.New("unexpected error")
)

// Mocked out for unit testing.
var (
	acquireLock = lock.Acquire
	writeStatus = status.Write
	newRunID    = func() string { return uuid.New().String() }
)

// Coordinator runs the sync tasks for a vault.
type Coordinator struct {
	cfg   config.Config
	tr    transfer.Transferer
	log   logrus.FieldLogger
	clock clockwork.Clock

	setupErr error
}

// NewCoordinator returns a Coordinator that syncs the vault described by
// cfg using tr.
func NewCoordinator(cfg config.Config, tr transfer.Transferer,
	log logrus.FieldLogger, clock clockwork.Clock) *Coordinator {
	return &Coordinator{cfg: cfg, tr: tr, log: log, clock: clock}
}

// SetupFailed records a failure that happened while preparing the run,
// such as opening the log file. The next Run takes the lock, fails its
// environment check with err, and records it in the status file.
func (c *Coordinator) SetupFailed(err error) {
	c.setupErr = err
}

// Run performs one sync in the given mode.
//
// If another run holds the lock, Run returns ErrAlreadyRunning without
// doing anything else. Otherwise the status record is written before Run
// returns, whether or not the run succeeded. Failures of individual tasks
// are logged and reflected in the task counters, but don't fail the run.
func (c *Coordinator) Run(ctx context.Context, mode config.Mode, dryRun bool) (res Result, err error) {
	if !mode.Valid() {
		return Result{}, errors.Newf("unknown mode %q", mode)
	}

	lk, err := acquireLock(c.cfg.LockFile)
	if err != nil {
		if err == lock.ErrLocked {
			c.log.WithField("lock", c.cfg.LockFile).Warn(
				"Another sync is already running. Exiting")
			return Result{}, ErrAlreadyRunning
		}
		return Result{}, errors.WithContext(err, "acquire lock")
	}
	defer lk.Release()

	res = Result{
		RunID:  newRunID(),
		Mode:   mode,
		DryRun: dryRun,
		Start:  c.clock.Now(),
	}
	log := c.log.WithField("run", res.RunID)
	log.WithFields(logrus.Fields{
		"mode":    mode,
		"dry-run": dryRun,
	}).Info("Starting sync")

	defer func() {
		if r := recover(); r != nil {
			res.Err = errUnexpected
			err = errUnexpected
			log.WithField("elapsed", c.clock.Since(res.Start).Round(time.Millisecond)).
				Errorf("Sync crashed: %v", r)
		}

		res.Duration = c.clock.Since(res.Start)
		if statusErr := writeStatus(c.cfg.StatusFile, res.Record()); statusErr != nil {
			log.WithError(statusErr).Error("Failed to write status record")
		}

		if res.Success() {
			log.WithFields(logrus.Fields{
				"transferred": res.Total(),
				"duration":    res.Duration.Round(time.Millisecond),
			}).Info("Sync finished")
		}
	}()

	if err := c.checkEnvironment(ctx, dryRun); err != nil {
		res.Err = err
		log.WithError(err).Error("Environment check failed")
		return res, err
	}

	for _, task := range c.plan(mode, &res) {
		count, err := task.Execute(ctx, c.tr, log, dryRun)
		if err != nil {
			log.WithError(err).Errorf("Failed to %s %s", task.Direction, task.Label)
			count = 0
		} else {
			log.WithField("files", count).Infof("Finished %s %s", task.Label, task.Direction)
		}
		*task.count = count
	}
	return res, nil
}

// checkEnvironment makes sure that the run can proceed at all. Any error
// aborts the run before a task is started. Dry runs leave the inbox alone,
// since it's a sync destination.
func (c *Coordinator) checkEnvironment(ctx context.Context, dryRun bool) error {
	if c.setupErr != nil {
		return c.setupErr
	}

	if err := c.tr.Check(ctx); err != nil {
		return errors.WithContext(err, "check transfer tool")
	}

	dirs := []string{
		filepath.Dir(c.cfg.LogFile),
		filepath.Dir(c.cfg.StatusFile),
	}
	if !dryRun {
		dirs = append(dirs, c.cfg.InboxDir)
	}
	for _, dir := range dirs {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errors.WithContext(err, fmt.Sprintf("create %s", dir))
		}
	}
	return nil
}

type plannedTask struct {
	Task
	count *int
}

// plan returns the tasks required by mode, in the order they run. Each task
// is bound to its counter in res.
func (c *Coordinator) plan(mode config.Mode, res *Result) []plannedTask {
	var tasks []plannedTask
	if mode == config.ModeFull || mode == config.ModeInbox {
		tasks = append(tasks, plannedTask{
			Task: Task{
				Label:       "inbox",
				Direction:   Download,
				Source:      c.cfg.RemotePath(config.RemoteInboxFolder),
				Destination: c.cfg.InboxDir,
				MaxAge:      c.cfg.InboxMaxAge.Duration,
			},
			count: &res.InboxDownloaded,
		})
	}

	if mode == config.ModeFull || mode == config.ModeUpload {
		uploads := []struct {
			label, dir, folder string
			count              *int
		}{
			{"receipts", c.cfg.ReceiptsDir, config.RemoteReceiptsFolder, &res.ReceiptsUploaded},
			{"summaries", c.cfg.SummariesDir, config.RemoteSummariesFolder, &res.SummariesUploaded},
			{"bookmarks", c.cfg.BookmarksDir, config.RemoteBookmarksFolder, &res.BookmarksUploaded},
		}
		for _, upload := range uploads {
			tasks = append(tasks, plannedTask{
				Task: Task{
					Label:       upload.label,
					Direction:   Upload,
					Source:      upload.dir,
					Destination: c.cfg.RemotePath(upload.folder),
				},
				count: upload.count,
			})
		}
	}
	return tasks
}
