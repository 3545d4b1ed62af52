// Package status reads and writes the status record: a small JSON document
// describing the outcome of the most recent sync run. It's the only artifact
// that monitoring tools are expected to consume.
package status

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/vaultsync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Record is the outcome of one run.
type Record struct {
	RunID   string    `json:"run_id"`
	LastRun time.Time `json:"last_run"`
	Success bool      `json:"success"`
	Mode    string    `json:"mode"`

	InboxDownloaded   int `json:"inbox_downloaded"`
	ReceiptsUploaded  int `json:"receipts_uploaded"`
	SummariesUploaded int `json:"summaries_uploaded"`
	BookmarksUploaded int `json:"bookmarks_uploaded"`

	DurationSeconds float64 `json:"duration_seconds"`
	DryRun          bool    `json:"dry_run"`
	Error           *string `json:"error"`
}

// Seconds converts d to seconds rounded to the millisecond.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// ErrorString returns a pointer suitable for Record.Error, or nil if msg is
// empty.
func ErrorString(msg string) *string {
	if msg == "" {
		return nil
	}
	return &msg
}

// Write replaces the record at `path`. The new contents are written to a
// temporary file in the same directory and renamed into place, so readers
// only ever see a complete record.
func Write(path string, rec Record) error {
	jsonBytes, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.WithContext(err, "marshal")
	}
	jsonBytes = append(jsonBytes, '\n')

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.WithContext(err, "create directory")
	}

	tmp, err := afero.TempFile(fs, dir, ".status-*.json")
	if err != nil {
		return errors.WithContext(err, "create temp file")
	}

	// Clean up the temp file unless it was renamed into place.
	renamed := false
	defer func() {
		if !renamed {
			fs.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(jsonBytes); err != nil {
		tmp.Close()
		return errors.WithContext(err, "write")
	}
	if err := tmp.Close(); err != nil {
		return errors.WithContext(err, "close")
	}
	if err := fs.Chmod(tmp.Name(), 0644); err != nil {
		return errors.WithContext(err, "chmod")
	}
	if err := fs.Rename(tmp.Name(), path); err != nil {
		return errors.WithContext(err, "rename")
	}
	renamed = true
	return nil
}

// Read loads the record at `path`.
func Read(path string) (Record, error) {
	jsonBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errors.FileNotFound{Path: path}
		}
		return Record{}, errors.WithContext(err, "read")
	}

	var rec Record
	if err := json.Unmarshal(jsonBytes, &rec); err != nil {
		return Record{}, errors.WithContext(err, "unmarshal")
	}
	return rec, nil
}
