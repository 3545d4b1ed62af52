package lock

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/vaultsync/ci/util"
	"github.com/sidkik/vaultsync/pkg/lock"
)

func Test(t *testing.T, binary string) {
	t.Run("Contention", func(t *testing.T) {
		testContention(t, util.NewTestHelper(t, binary))
	})
	t.Run("KilledRun", func(t *testing.T) {
		testKilledRun(t, util.NewTestHelper(t, binary))
	})
}

// testContention checks that a run that starts while another is in the
// middle of a transfer exits with the contention code without touching the
// status record.
func testContention(t *testing.T, helper *util.TestHelper) {
	helper.WriteFile(t, "vault/receipts/grocer.jpg", time.Hour)
	code, out := helper.Run(t, "--upload")
	require.Equal(t, 0, code, out)
	before := helper.Status(t)

	helper.UseBlockingRclone(t)
	first := helper.Command()
	require.NoError(t, first.Start())
	defer first.Process.Kill()
	helper.WaitForRunStart(t, 1)

	code, out = helper.Run(t)
	assert.Equal(t, 2, code, out)
	assert.Equal(t, before, helper.Status(t))
}

// testKilledRun checks that the kernel releases the lock of a run that's
// killed without a chance to clean up.
func testKilledRun(t *testing.T, helper *util.TestHelper) {
	helper.UseBlockingRclone(t)
	run := helper.Command()
	require.NoError(t, run.Start())
	helper.WaitForRunStart(t, 0)

	require.NoError(t, run.Process.Signal(syscall.SIGKILL))
	run.Wait()

	lk, err := lock.Acquire(helper.Path("state/vaultsync.lock"))
	require.NoError(t, err)
	lk.Release()

	assert.False(t, helper.Exists("state/status.json"))
}
