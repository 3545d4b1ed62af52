package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/vaultsync/ci/util"
)

func Test(t *testing.T, binary string) {
	t.Run("ExampleScenario", func(t *testing.T) {
		testExampleScenario(t, util.NewTestHelper(t, binary))
	})
	t.Run("DryRun", func(t *testing.T) {
		testDryRun(t, util.NewTestHelper(t, binary))
	})
	t.Run("Modes", func(t *testing.T) {
		testModes(t, util.NewTestHelper(t, binary))
	})
	t.Run("BadArguments", func(t *testing.T) {
		testBadArguments(t, util.NewTestHelper(t, binary))
	})
}

func testExampleScenario(t *testing.T, helper *util.TestHelper) {
	helper.WriteFile(t, "remote/inbox/receipt_001.jpg", 2*time.Hour)
	helper.WriteFile(t, "remote/inbox/receipt_old.jpg", 100*time.Hour)
	helper.WriteFile(t, "vault/receipts/grocer.jpg", time.Hour)

	code, out := helper.Run(t)
	assert.Equal(t, 0, code, out)

	rec := helper.Status(t)
	assert.True(t, rec.Success)
	assert.Equal(t, 1, rec.InboxDownloaded)
	assert.Equal(t, 1, rec.ReceiptsUploaded)
	assert.Equal(t, 0, rec.SummariesUploaded)
	assert.Equal(t, 0, rec.BookmarksUploaded)
	assert.False(t, helper.Exists("vault/inbox/receipt_old.jpg"))

	// Nothing changed, so the second run is a no-op.
	code, out = helper.Run(t)
	assert.Equal(t, 0, code, out)

	rec = helper.Status(t)
	assert.True(t, rec.Success)
	assert.Equal(t, 0, rec.InboxDownloaded+rec.ReceiptsUploaded+
		rec.SummariesUploaded+rec.BookmarksUploaded)
}

func testDryRun(t *testing.T, helper *util.TestHelper) {
	helper.WriteFile(t, "remote/inbox/receipt_001.jpg", 2*time.Hour)
	helper.WriteFile(t, "vault/summaries/2026-10.md", time.Hour)

	code, out := helper.Run(t, "--dry-run")
	assert.Equal(t, 0, code, out)

	assert.False(t, helper.Exists("vault/inbox/receipt_001.jpg"))
	assert.False(t, helper.Exists("remote/summaries/2026-10.md"))

	rec := helper.Status(t)
	assert.True(t, rec.DryRun)
	assert.Equal(t, 1, rec.InboxDownloaded)
	assert.Equal(t, 1, rec.SummariesUploaded)
}

func testModes(t *testing.T, helper *util.TestHelper) {
	helper.WriteFile(t, "remote/inbox/receipt_001.jpg", 2*time.Hour)
	helper.WriteFile(t, "vault/bookmarks/links.md", time.Hour)

	code, out := helper.Run(t, "--upload")
	assert.Equal(t, 0, code, out)
	assert.Equal(t, "upload-only", helper.Status(t).Mode)
	assert.True(t, helper.Exists("remote/bookmarks/links.md"))
	assert.False(t, helper.Exists("vault/inbox/receipt_001.jpg"))

	code, out = helper.Run(t, "--inbox")
	assert.Equal(t, 0, code, out)
	assert.Equal(t, "inbox-only", helper.Status(t).Mode)
	assert.True(t, helper.Exists("vault/inbox/receipt_001.jpg"))
}

func testBadArguments(t *testing.T, helper *util.TestHelper) {
	for _, args := range [][]string{
		{"--inbox", "--upload"},
		{"--mirror"},
		{"inbox"},
	} {
		code, out := helper.Run(t, args...)
		assert.Equal(t, 1, code, out)
		assert.False(t, helper.Exists("state/status.json"), "%v", args)
		assert.False(t, helper.Exists("state/vaultsync.lock"), "%v", args)
	}
}
