package util

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sidkik/vaultsync/pkg/status"
)

// fakeRclone stands in for rclone when a test needs a run that stays in the
// middle of a transfer. It reports a supported version, and blocks on copies.
const fakeRclone = `#!/bin/sh
if [ "$1" = "version" ]; then
	echo "rclone v1.65.0"
	exit 0
fi
sleep 30
`

// TestHelper contains methods commonly used during integration tests. Each
// helper owns a scratch directory holding a vault, a directory remote and
// the vaultsync state.
type TestHelper struct {
	Binary string
	Dir    string
}

// NewTestHelper creates a new TestHelper in a fresh scratch directory.
func NewTestHelper(t *testing.T, binary string) *TestHelper {
	dir, err := ioutil.TempDir("", "vaultsync-ci")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	helper := &TestHelper{Binary: binary, Dir: dir}
	helper.WriteConfig(t, "local", "")
	return helper
}

// WriteConfig points vaultsync at the scratch directory. `rclone` is only
// used by the rclone backend.
func (helper *TestHelper) WriteConfig(t *testing.T, backend, rclone string) {
	remote := helper.Path("remote")
	if backend == "rclone" {
		remote = "fake:vault"
	}

	cfg := fmt.Sprintf(`backend: %[2]s
remote: %[3]s
inboxDir: %[1]s/vault/inbox
receiptsDir: %[1]s/vault/receipts
summariesDir: %[1]s/vault/summaries
bookmarksDir: %[1]s/vault/bookmarks
logFile: %[1]s/state/sync.log
statusFile: %[1]s/state/status.json
lockFile: %[1]s/state/vaultsync.lock
`, helper.Dir, backend, remote)
	if rclone != "" {
		cfg += fmt.Sprintf("rclone: %s\n", rclone)
	}
	require.NoError(t, ioutil.WriteFile(helper.Path("config.yaml"), []byte(cfg), 0644))
}

// UseBlockingRclone switches to the rclone backend with a fake rclone whose
// copies never finish on their own.
func (helper *TestHelper) UseBlockingRclone(t *testing.T) {
	path := helper.Path("bin/rclone")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, ioutil.WriteFile(path, []byte(fakeRclone), 0755))
	helper.WriteConfig(t, "rclone", path)
}

// Path returns the absolute path of `rel` in the scratch directory.
func (helper *TestHelper) Path(rel string) string {
	return filepath.Join(helper.Dir, rel)
}

// WriteFile creates a file in the scratch directory that was last modified
// `age` ago.
func (helper *TestHelper) WriteFile(t *testing.T, rel string, age time.Duration) {
	path := helper.Path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, ioutil.WriteFile(path, []byte(rel), 0644))
	modTime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

// Exists returns whether `rel` exists in the scratch directory.
func (helper *TestHelper) Exists(rel string) bool {
	_, err := os.Stat(helper.Path(rel))
	return err == nil
}

// Command returns a command that runs vaultsync against the scratch
// directory.
func (helper *TestHelper) Command(args ...string) *exec.Cmd {
	args = append(args, "--config", helper.Path("config.yaml"))
	cmd := exec.Command(helper.Binary, args...)
	cmd.Env = append(os.Environ(), "VAULTSYNC_CONFIG=")
	return cmd
}

// Run runs vaultsync to completion and returns its exit code and output.
func (helper *TestHelper) Run(t *testing.T, args ...string) (int, string) {
	var out bytes.Buffer
	cmd := helper.Command(args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.Sys().(syscall.WaitStatus).ExitStatus(), out.String()
	}
	require.NoError(t, err)
	return 0, out.String()
}

// Status reads the status record.
func (helper *TestHelper) Status(t *testing.T) status.Record {
	rec, err := status.Read(helper.Path("state/status.json"))
	require.NoError(t, err)
	return rec
}

// Runs returns the number of runs that have started, according to the log.
func (helper *TestHelper) Runs(t *testing.T) int {
	logBytes, err := ioutil.ReadFile(helper.Path("state/sync.log"))
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(logBytes), "] Starting sync")
}

// WaitForRunStart blocks until more than `prevRuns` runs have started. A
// run only logs that it started once it holds the lock.
func (helper *TestHelper) WaitForRunStart(t *testing.T, prevRuns int) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if helper.Runs(t) > prevRuns {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the run to start")
}
