package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/vaultsync/pkg/errors"
)

func mockEnvironment(t *testing.T, env map[string]string) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		if strings.HasPrefix(path, "~") {
			return "/home/user" + path[1:], nil
		}
		return path, nil
	}
	getenv = func(key string) string {
		return env[key]
	}

	t.Cleanup(func() {
		fs = afero.NewOsFs()
		homedirExpand = defaultHomedirExpand
		getenv = defaultGetenv
	})
}

var (
	defaultHomedirExpand = homedirExpand
	defaultGetenv        = getenv
)

func TestLoadDefaults(t *testing.T) {
	mockEnvironment(t, nil)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gdrive:vault", cfg.Remote)
	assert.Equal(t, "/home/user/vault/inbox", cfg.InboxDir)
	assert.Equal(t, "/home/user/vault/receipts", cfg.ReceiptsDir)
	assert.Equal(t, "/home/user/vault/summaries", cfg.SummariesDir)
	assert.Equal(t, "/home/user/vault/bookmarks", cfg.BookmarksDir)
	assert.Equal(t, 72*time.Hour, cfg.InboxMaxAge.Duration)
	assert.Equal(t, "/home/user/.local/state/vaultsync/sync.log", cfg.LogFile)
	assert.Equal(t, "/home/user/.local/state/vaultsync/status.json", cfg.StatusFile)
	assert.Equal(t, BackendRclone, cfg.Backend)
	assert.Equal(t, ModeFull, cfg.Mode)
	assert.False(t, cfg.DryRun)
}

func TestLoadPrecedence(t *testing.T) {
	mockEnvironment(t, map[string]string{
		"VAULTSYNC_REMOTE":        "b2:env-vault",
		"VAULTSYNC_INBOX_MAX_AGE": "2d",
	})

	fileContents := `
remote: gdrive:file-vault
receiptsDir: ~/docs/receipts
inboxMaxAge: 12h
statusFile: /var/lib/vaultsync/status.json
`
	require.NoError(t, afero.WriteFile(fs, "/etc/vaultsync.yaml", []byte(fileContents), 0644))

	cfg, err := Load("/etc/vaultsync.yaml")
	require.NoError(t, err)

	// Environment beats the file.
	assert.Equal(t, "b2:env-vault", cfg.Remote)
	assert.Equal(t, 48*time.Hour, cfg.InboxMaxAge.Duration)

	// The file beats the defaults.
	assert.Equal(t, "/home/user/docs/receipts", cfg.ReceiptsDir)
	assert.Equal(t, "/var/lib/vaultsync/status.json", cfg.StatusFile)

	// Untouched keys keep their defaults.
	assert.Equal(t, "/home/user/vault/bookmarks", cfg.BookmarksDir)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	mockEnvironment(t, map[string]string{
		"VAULTSYNC_CONFIG": "~/vaultsync.yaml",
	})
	require.NoError(t, afero.WriteFile(fs, "/home/user/vaultsync.yaml",
		[]byte("remote: s3:bucket\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3:bucket", cfg.Remote)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name        string
		contents    string
		env         map[string]string
		expFriendly bool
		expErr      string
	}{
		{
			name:        "ExtraField",
			contents:    "remote: gdrive:vault\nmirror: true\n",
			expFriendly: true,
		},
		{
			name:        "BadAge",
			contents:    "inboxMaxAge: soon\n",
			expFriendly: true,
		},
		{
			name:   "BadEnvAge",
			env:    map[string]string{"VAULTSYNC_INBOX_MAX_AGE": "forever"},
			expErr: `environment: VAULTSYNC_INBOX_MAX_AGE: invalid age "forever"`,
		},
		{
			name:        "ZeroAge",
			contents:    "inboxMaxAge: 0d\n",
			expFriendly: true,
		},
		{
			name:   "NegativeEnvAge",
			env:    map[string]string{"VAULTSYNC_INBOX_MAX_AGE": "-3d"},
			expErr: `environment: VAULTSYNC_INBOX_MAX_AGE: invalid age "-3d": must be positive`,
		},
		{
			name:        "UnknownBackend",
			contents:    "backend: ftp\n",
			expFriendly: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			mockEnvironment(t, test.env)
			if test.contents != "" {
				require.NoError(t, afero.WriteFile(fs, "/config.yaml", []byte(test.contents), 0644))
			}

			_, err := Load("/config.yaml")
			require.Error(t, err)
			if test.expFriendly {
				_, ok := errors.GetFriendlyMessage(err)
				assert.True(t, ok, "expected a friendly error, got %v", err)
			}
			if test.expErr != "" {
				assert.EqualError(t, err, test.expErr)
			}
		})
	}
}

func TestLocalBackendExpandsRemote(t *testing.T) {
	mockEnvironment(t, map[string]string{
		"VAULTSYNC_BACKEND": "local",
		"VAULTSYNC_REMOTE":  "~/mnt/nas",
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/home/user/mnt/nas", cfg.Remote)
	assert.Equal(t, "/home/user/mnt/nas/inbox", cfg.RemotePath(RemoteInboxFolder))
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input  string
		exp    Mode
		expErr bool
	}{
		{input: "", exp: ModeFull},
		{input: "full", exp: ModeFull},
		{input: "inbox", exp: ModeInbox},
		{input: "inbox-only", exp: ModeInbox},
		{input: "Upload", exp: ModeUpload},
		{input: "upload-only", exp: ModeUpload},
		{input: "mirror", expErr: true},
	}

	for _, test := range tests {
		mode, err := ParseMode(test.input)
		if test.expErr {
			assert.Error(t, err, test.input)
			continue
		}
		assert.NoError(t, err, test.input)
		assert.Equal(t, test.exp, mode, test.input)
		assert.True(t, mode.Valid())
	}
	assert.False(t, Mode("mirror").Valid())
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		input  string
		exp    time.Duration
		expErr bool
	}{
		{input: "72h", exp: 72 * time.Hour},
		{input: "3d", exp: 72 * time.Hour},
		{input: "1.5d", exp: 36 * time.Hour},
		{input: "90m", exp: 90 * time.Minute},
		{input: "d", expErr: true},
		{input: "three days", expErr: true},
		{input: "0", expErr: true},
		{input: "0d", expErr: true},
		{input: "0s", expErr: true},
		{input: "-2h", expErr: true},
		{input: "-1d", expErr: true},
	}

	for _, test := range tests {
		age, err := ParseAge(test.input)
		if test.expErr {
			assert.Error(t, err, test.input)
			continue
		}
		assert.NoError(t, err, test.input)
		assert.Equal(t, test.exp, age, test.input)
	}
}

func TestJoinRemote(t *testing.T) {
	assert.Equal(t, "gdrive:inbox", JoinRemote("gdrive:", "inbox"))
	assert.Equal(t, "gdrive:vault/inbox", JoinRemote("gdrive:vault", "inbox"))
	assert.Equal(t, "gdrive:vault/inbox", JoinRemote("gdrive:vault/", "inbox"))
	assert.Equal(t, "/mnt/nas/inbox", JoinRemote("/mnt/nas", "inbox"))
	assert.Equal(t, "inbox", JoinRemote("", "inbox"))
}

func TestWriteThenLoad(t *testing.T) {
	mockEnvironment(t, nil)

	cfg := Default()
	cfg.Remote = "b2:receipts-vault"
	cfg.InboxDir = "/data/vault/inbox"
	cfg.InboxMaxAge = Duration{36 * time.Hour}
	cfg.DryRun = true

	path, err := ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/home/user/.config/vaultsync/config.yaml", path)
	require.NoError(t, Write(path, cfg))

	contents, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "inboxMaxAge: 36h0m0s\n")
	assert.NotContains(t, string(contents), "dryRun")

	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "b2:receipts-vault", loaded.Remote)
	assert.Equal(t, "/data/vault/inbox", loaded.InboxDir)
	assert.Equal(t, 36*time.Hour, loaded.InboxMaxAge.Duration)
	assert.Equal(t, "/home/user/vault/receipts", loaded.ReceiptsDir)
	assert.False(t, loaded.DryRun)
}
