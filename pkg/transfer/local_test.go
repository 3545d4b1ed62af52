package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type mockFile struct {
	path     string
	contents string
	age      time.Duration
}

func writeFiles(t *testing.T, fs afero.Fs, files ...mockFile) {
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f.path, []byte(f.contents), 0644))
		modTime := now.Add(-f.age)
		require.NoError(t, fs.Chtimes(f.path, modTime, modTime))
	}
}

func assertContents(t *testing.T, fs afero.Fs, path, exp string) {
	contents, err := afero.ReadFile(fs, path)
	require.NoError(t, err, path)
	assert.Equal(t, exp, string(contents), path)
}

func TestLocalCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		mockFile{path: "/remote/inbox/receipt_001.jpg", contents: "new", age: 2 * time.Hour},
		mockFile{path: "/remote/inbox/2026/scan.pdf", contents: "nested", age: time.Hour},
		mockFile{path: "/remote/inbox/receipt_old.jpg", contents: "old", age: 100 * time.Hour},
	)

	local := NewLocal(fs, clockwork.NewFakeClockAt(now))
	opts := Options{UpdateOnly: true, MaxAge: 72 * time.Hour}
	transcript, err := local.Copy(context.Background(), "/remote/inbox", "/vault/inbox", opts)
	require.NoError(t, err)

	count, ok := CountTransferred(transcript)
	assert.True(t, ok)
	assert.Equal(t, 2, count)
	assert.Contains(t, transcript, "INFO  : receipt_001.jpg: Copied (new)")

	assertContents(t, fs, "/vault/inbox/receipt_001.jpg", "new")
	assertContents(t, fs, "/vault/inbox/2026/scan.pdf", "nested")
	exists, err := afero.Exists(fs, "/vault/inbox/receipt_old.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	// Modification times are preserved, so a second copy is a no-op.
	info, err := fs.Stat("/vault/inbox/receipt_001.jpg")
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(now.Add(-2*time.Hour)))

	transcript, err = local.Copy(context.Background(), "/remote/inbox", "/vault/inbox", opts)
	require.NoError(t, err)
	count, ok = CountTransferred(transcript)
	assert.True(t, ok)
	assert.Equal(t, 0, count)
	assert.Contains(t, transcript, "There was nothing to transfer")
}

func TestLocalCopyUpdateOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		mockFile{path: "/src/newer.txt", contents: "source", age: time.Hour},
		mockFile{path: "/dst/newer.txt", contents: "stale", age: 2 * time.Hour},
		mockFile{path: "/src/older.txt", contents: "source", age: 2 * time.Hour},
		mockFile{path: "/dst/older.txt", contents: "local edit", age: time.Hour},
		mockFile{path: "/src/same.txt", contents: "source", age: time.Hour},
		mockFile{path: "/dst/same.txt", contents: "other", age: time.Hour},
		mockFile{path: "/dst/only-at-destination.txt", contents: "keep me", age: time.Hour},
	)

	transcript, err := NewLocal(fs, clockwork.NewFakeClockAt(now)).Copy(
		context.Background(), "/src", "/dst", Options{UpdateOnly: true})
	require.NoError(t, err)

	count, _ := CountTransferred(transcript)
	assert.Equal(t, 1, count)
	assert.Contains(t, transcript, "newer.txt: Copied (replaced existing)")

	assertContents(t, fs, "/dst/newer.txt", "source")
	assertContents(t, fs, "/dst/older.txt", "local edit")
	assertContents(t, fs, "/dst/same.txt", "other")

	// Copies never delete.
	assertContents(t, fs, "/dst/only-at-destination.txt", "keep me")
}

func TestLocalCopyDryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		mockFile{path: "/src/a.txt", contents: "a", age: time.Hour},
		mockFile{path: "/src/b.txt", contents: "b", age: time.Hour},
	)

	transcript, err := NewLocal(fs, clockwork.NewFakeClockAt(now)).Copy(
		context.Background(), "/src", "/dst", Options{UpdateOnly: true, DryRun: true})
	require.NoError(t, err)

	count, ok := CountTransferred(transcript)
	assert.True(t, ok)
	assert.Equal(t, 2, count)

	exists, err := afero.DirExists(fs, "/dst")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalCopyMissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := NewLocal(fs, clockwork.NewFakeClockAt(now)).Copy(
		context.Background(), "/remote/inbox", "/vault/inbox", Options{})
	assert.Equal(t, errors.FileNotFound{Path: "/remote/inbox"}, err)
}

func TestLocalCopyCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, mockFile{path: "/src/a.txt", contents: "a", age: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal(fs, clockwork.NewFakeClockAt(now)).Copy(ctx, "/src", "/dst", Options{})
	assert.Equal(t, context.Canceled, err)
}

func TestNew(t *testing.T) {
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(now)

	cfg := config.Default()
	tr, err := New(cfg, fs, clock)
	require.NoError(t, err)
	assert.IsType(t, &Rclone{}, tr)

	cfg.Backend = config.BackendLocal
	tr, err = New(cfg, fs, clock)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, tr)
	assert.NoError(t, tr.Check(context.Background()))

	cfg.Backend = "ftp"
	_, err = New(cfg, fs, clock)
	assert.Error(t, err)
}
