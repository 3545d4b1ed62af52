package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/sidkik/vaultsync/pkg/errors"
)

// Local copies between two directories of the same filesystem. It's used
// when the remote is a mounted directory rather than an rclone remote, and
// follows rclone's copy semantics and log format.
type Local struct {
	fs    afero.Fs
	clock clockwork.Clock
}

// NewLocal creates a new Local transferer.
func NewLocal(fs afero.Fs, clock clockwork.Clock) *Local {
	return &Local{fs: fs, clock: clock}
}

// Check implements Transferer. The local backend has no external
// dependencies.
func (l *Local) Check(context.Context) error {
	return nil
}

// Copy implements Transferer.
func (l *Local) Copy(ctx context.Context, src, dst string, opts Options) (string, error) {
	var transcript strings.Builder
	logf := func(level, format string, args ...interface{}) {
		fmt.Fprintf(&transcript, "%s %-6s: %s\n",
			l.clock.Now().Format("2006/01/02 15:04:05"), level, fmt.Sprintf(format, args...))
	}

	srcInfo, err := l.fs.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			logf("ERROR", "error reading source root directory: directory not found")
			return transcript.String(), errors.FileNotFound{Path: src}
		}
		return transcript.String(), errors.WithContext(err, "stat source")
	}
	if !srcInfo.IsDir() {
		return transcript.String(), errors.Newf("source %q is not a directory", src)
	}

	var transferred int
	var transferredBytes int64
	err = afero.Walk(l.fs, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.WithContext(err, "relative path")
		}

		if opts.MaxAge > 0 && l.clock.Since(fi.ModTime()) > opts.MaxAge {
			return nil
		}

		target := filepath.Join(dst, rel)
		dstInfo, err := l.fs.Stat(target)
		exists := err == nil
		if err != nil && !os.IsNotExist(err) {
			return errors.WithContext(err, "stat destination")
		}

		if exists {
			if opts.UpdateOnly && !dstInfo.ModTime().Before(fi.ModTime()) {
				return nil
			}
			if !opts.UpdateOnly && dstInfo.Size() == fi.Size() && dstInfo.ModTime().Equal(fi.ModTime()) {
				return nil
			}
		}

		transferred++
		transferredBytes += fi.Size()
		if opts.DryRun {
			logf("NOTICE", "%s: Skipped copy as --dry-run is set (size %d)", rel, fi.Size())
			return nil
		}

		if err := l.copyFile(path, target, fi); err != nil {
			logf("ERROR", "%s: Failed to copy: %s", rel, err)
			return errors.WithContext(err, fmt.Sprintf("copy %q", rel))
		}

		if exists {
			logf("INFO", "%s: Copied (replaced existing)", rel)
		} else {
			logf("INFO", "%s: Copied (new)", rel)
		}
		return nil
	})
	if err != nil {
		return transcript.String(), err
	}

	if transferred == 0 {
		logf("INFO", "There was nothing to transfer")
	}
	fmt.Fprintf(&transcript, "Transferred:   \t%d B / %d B, 100%%\n", transferredBytes, transferredBytes)
	fmt.Fprintf(&transcript, "Transferred:   \t%d / %d, 100%%\n", transferred, transferred)
	return transcript.String(), nil
}

// copyFile copies the contents of `src` to `dst` and preserves the
// modification time, so that later update-only copies see the files as
// equal.
func (l *Local) copyFile(src, dst string, srcInfo os.FileInfo) error {
	if err := l.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithContext(err, "create parent")
	}

	in, err := l.fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer in.Close()

	out, err := l.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return errors.WithContext(err, "open destination")
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.WithContext(err, "write")
	}
	if err := out.Close(); err != nil {
		return errors.WithContext(err, "close")
	}

	modTime := srcInfo.ModTime()
	if err := l.fs.Chtimes(dst, modTime, modTime); err != nil {
		return errors.WithContext(err, "set modification time")
	}
	return nil
}
