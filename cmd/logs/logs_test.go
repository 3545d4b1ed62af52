package logs

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
)

const logContents = `2026-10-19T09:00:00-04:00 [INFO] Starting sync dry-run=false mode=full run=aaa
2026-10-19T09:00:01-04:00 [DEBUG] Starting copy dst=/vault/inbox run=aaa task=inbox
2026-10-19T09:00:02-04:00 [WARN] Local directory does not exist. Nothing to upload run=aaa task=bookmarks
2026-10-19T09:00:03-04:00 [INFO] Sync finished run=aaa transferred=2
2026-10-19T10:00:00-04:00 [INFO] Starting sync dry-run=false mode=full run=bbb
2026-10-19T10:00:04-04:00 [ERROR] Failed to download inbox error="download: exit status 3" run=bbb task=inbox
2026-10-19T10:00:05-04:00 [INFO] Sync finished run=bbb transferred=0
`

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		opts     options
		colorize bool
		exp      string
	}{
		{
			name: "Tail",
			opts: options{lines: 2, level: "info"},
			exp: "2026-10-19T10:00:04-04:00 [ERROR] Failed to download inbox error=\"download: exit status 3\" run=bbb task=inbox\n" +
				"2026-10-19T10:00:05-04:00 [INFO] Sync finished run=bbb transferred=0\n",
		},
		{
			name: "WarningsAndErrors",
			opts: options{level: "WARN"},
			exp: "2026-10-19T09:00:02-04:00 [WARN] Local directory does not exist. Nothing to upload run=aaa task=bookmarks\n" +
				"2026-10-19T10:00:04-04:00 [ERROR] Failed to download inbox error=\"download: exit status 3\" run=bbb task=inbox\n",
		},
		{
			name: "OneRun",
			opts: options{level: "DEBUG", run: "aaa", lines: 2},
			exp: "2026-10-19T09:00:02-04:00 [WARN] Local directory does not exist. Nothing to upload run=aaa task=bookmarks\n" +
				"2026-10-19T09:00:03-04:00 [INFO] Sync finished run=aaa transferred=2\n",
		},
		{
			name:     "Colorized",
			opts:     options{level: "ERROR"},
			colorize: true,
			exp: "\x1b[31m2026-10-19T10:00:04-04:00 [ERROR] Failed to download inbox " +
				"error=\"download: exit status 3\" run=bbb task=inbox\x1b[0m\n",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs = afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/state/sync.log", []byte(logContents), 0644))

			var out bytes.Buffer
			stdout = &out
			loadConfig = func(string) (config.Config, error) {
				return config.Config{LogFile: "/state/sync.log"}, nil
			}
			isTerminal = func() bool { return test.colorize }

			assert.NoError(t, run("", test.opts))
			assert.Equal(t, test.exp, out.String())
		})
	}
}

func TestRunErrors(t *testing.T) {
	fs = afero.NewMemMapFs()
	loadConfig = func(string) (config.Config, error) {
		return config.Config{LogFile: "/state/sync.log"}, nil
	}

	err := run("", options{level: "INFO"})
	msg, ok := errors.GetFriendlyMessage(err)
	assert.True(t, ok)
	assert.Contains(t, msg, "No log found at /state/sync.log")

	err = run("", options{level: "LOUD"})
	_, ok = errors.GetFriendlyMessage(err)
	assert.True(t, ok)
}
