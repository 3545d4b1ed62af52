package sync

import (
	"time"

	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/status"
)

// Result is the outcome of a run. Each task writes its own counter exactly
// once.
type Result struct {
	RunID  string
	Mode   config.Mode
	DryRun bool

	InboxDownloaded   int
	ReceiptsUploaded  int
	SummariesUploaded int
	BookmarksUploaded int

	Start    time.Time
	Duration time.Duration

	// Err is set if the run itself failed, either during setup or because
	// of an unexpected fault. Failed tasks don't set it.
	Err error
}

// Success returns whether the run completed.
func (res Result) Success() bool {
	return res.Err == nil
}

// Total returns the number of files transferred by all tasks.
func (res Result) Total() int {
	return res.InboxDownloaded + res.ReceiptsUploaded +
		res.SummariesUploaded + res.BookmarksUploaded
}

// Record converts the result into its status record.
func (res Result) Record() status.Record {
	var errMsg string
	if res.Err != nil {
		errMsg = res.Err.Error()
	}

	return status.Record{
		RunID:             res.RunID,
		LastRun:           res.Start.Truncate(time.Second),
		Success:           res.Success(),
		Mode:              string(res.Mode),
		InboxDownloaded:   res.InboxDownloaded,
		ReceiptsUploaded:  res.ReceiptsUploaded,
		SummariesUploaded: res.SummariesUploaded,
		BookmarksUploaded: res.BookmarksUploaded,
		DurationSeconds:   status.Seconds(res.Duration),
		DryRun:            res.DryRun,
		Error:             status.ErrorString(errMsg),
	}
}
