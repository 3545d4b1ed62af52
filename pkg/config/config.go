package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/vaultsync/pkg/errors"
)

const (
	// DefaultConfigPath is where the config file is read from when neither
	// the --config flag nor VAULTSYNC_CONFIG is set.
	DefaultConfigPath = "~/.config/vaultsync/config.yaml"

	// EnvPrefix is the prefix of every environment variable override.
	EnvPrefix = "VAULTSYNC_"

	// DefaultInboxMaxAge is how old a remote inbox file may be and still be
	// downloaded.
	DefaultInboxMaxAge = 72 * time.Hour
)

// Transfer backends.
const (
	BackendRclone = "rclone"
	BackendLocal  = "local"
)

// Folder names under the remote root.
const (
	RemoteInboxFolder     = "inbox"
	RemoteReceiptsFolder  = "receipts"
	RemoteSummariesFolder = "summaries"
	RemoteBookmarksFolder = "bookmarks"
)

// parseConfigErrTemplate is a template for when the config file can't be
// parsed. The yaml library loses most context when it constructs errors, so
// we can only pass the error message on.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

// Mode selects which sync tasks a run performs.
type Mode string

const (
	// ModeFull downloads the inbox and uploads every vault category.
	ModeFull Mode = "full"
	// ModeInbox only downloads the inbox.
	ModeInbox Mode = "inbox-only"
	// ModeUpload only uploads the vault categories.
	ModeUpload Mode = "upload-only"
)

// ParseMode converts a user supplied mode name into a Mode. The empty string
// is the full mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return ModeFull, nil
	case "inbox", "inbox-only":
		return ModeInbox, nil
	case "upload", "upload-only":
		return ModeUpload, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Valid returns whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeFull, ModeInbox, ModeUpload:
		return true
	}
	return false
}

// Duration is a time.Duration that's written in config files as a string
// such as "72h" or "3d".
type Duration struct {
	time.Duration
}

// ParseAge parses a Go duration string, additionally accepting a trailing
// "d" for whole days. Ages must be positive: a zero age would turn off the
// inbox filter.
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	var d time.Duration
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		d = time.Duration(days * float64(24*time.Hour))
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		d = parsed
	}

	if d <= 0 {
		return 0, fmt.Errorf("invalid age %q: must be positive", s)
	}
	return d, nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("age must be a string such as \"72h\": %s", err)
	}

	parsed, err := ParseAge(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config is the fully resolved configuration of a single run. It's built
// once by Load and then passed around by value.
type Config struct {
	// Remote is the remote root, in the transfer tool's syntax, e.g.
	// "gdrive:vault".
	Remote string `json:"remote"`

	InboxDir     string `json:"inboxDir"`
	ReceiptsDir  string `json:"receiptsDir"`
	SummariesDir string `json:"summariesDir"`
	BookmarksDir string `json:"bookmarksDir"`

	// InboxMaxAge excludes remote inbox files older than this.
	InboxMaxAge Duration `json:"inboxMaxAge"`

	LogFile    string `json:"logFile"`
	StatusFile string `json:"statusFile"`
	LockFile   string `json:"lockFile"`

	// Backend is either "rclone" or "local".
	Backend string `json:"backend"`

	// Rclone is the rclone binary to run.
	Rclone string `json:"rclone"`

	// RcloneConfig is passed to rclone's --config flag when set.
	RcloneConfig string `json:"rcloneConfig,omitempty"`

	Mode   Mode `json:"-"`
	DryRun bool `json:"-"`
}

// Default returns the configuration used when neither a config file nor
// environment overrides are present.
func Default() Config {
	return Config{
		Remote:       "gdrive:vault",
		InboxDir:     "~/vault/inbox",
		ReceiptsDir:  "~/vault/receipts",
		SummariesDir: "~/vault/summaries",
		BookmarksDir: "~/vault/bookmarks",
		InboxMaxAge:  Duration{DefaultInboxMaxAge},
		LogFile:      "~/.local/state/vaultsync/sync.log",
		StatusFile:   "~/.local/state/vaultsync/status.json",
		LockFile:     filepath.Join(os.TempDir(), "vaultsync.lock"),
		Backend:      BackendRclone,
		Rclone:       "rclone",
		Mode:         ModeFull,
	}
}

// Variables mocked for unit testing.
var (
	homedirExpand = homedir.Expand
	getenv        = os.Getenv
)

// Load resolves the configuration from the defaults, the config file at
// `path` (if it exists), and environment overrides, in increasing order of
// precedence. An empty path selects VAULTSYNC_CONFIG or DefaultConfigPath.
// Directories are not checked for existence here.
func Load(path string) (Config, error) {
	path, err := ResolvePath(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	cfg := Default()
	if err := parseConfig(path, &cfg); err != nil {
		if _, ok := err.(errors.FileNotFound); !ok {
			return Config{}, errors.WithContext(err, "parse")
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return Config{}, errors.WithContext(err, "environment")
	}

	if err := cfg.expandPaths(); err != nil {
		return Config{}, errors.WithContext(err, "expand paths")
	}

	switch cfg.Backend {
	case BackendRclone, BackendLocal:
	default:
		return Config{}, errors.NewFriendlyError(
			"Unknown transfer backend %q. Expected %q or %q.",
			cfg.Backend, BackendRclone, BackendLocal)
	}
	return cfg, nil
}

// ResolvePath returns the config file that Load would read for `path`.
func ResolvePath(path string) (string, error) {
	if path == "" {
		path = getenv(EnvPrefix + "CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}
	return homedirExpand(path)
}

// Write saves cfg to the config file at `path`, creating its directory if
// needed.
func Write(path string, cfg Config) error {
	configBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithContext(err, "create directory")
	}
	return afero.WriteFile(fs, path, configBytes, 0644)
}

func parseConfig(path string, cfg *Config) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	if err := yaml.UnmarshalStrict(configBytes, cfg, yaml.DisallowUnknownFields); err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}

func (c *Config) loadFromEnv() error {
	overrides := map[string]*string{
		"REMOTE":        &c.Remote,
		"INBOX_DIR":     &c.InboxDir,
		"RECEIPTS_DIR":  &c.ReceiptsDir,
		"SUMMARIES_DIR": &c.SummariesDir,
		"BOOKMARKS_DIR": &c.BookmarksDir,
		"LOG_FILE":      &c.LogFile,
		"STATUS_FILE":   &c.StatusFile,
		"LOCK_FILE":     &c.LockFile,
		"BACKEND":       &c.Backend,
		"RCLONE":        &c.Rclone,
		"RCLONE_CONFIG": &c.RcloneConfig,
	}
	for key, field := range overrides {
		if v := getenv(EnvPrefix + key); v != "" {
			*field = v
		}
	}

	if v := getenv(EnvPrefix + "INBOX_MAX_AGE"); v != "" {
		age, err := ParseAge(v)
		if err != nil {
			return errors.WithContext(err, EnvPrefix+"INBOX_MAX_AGE")
		}
		c.InboxMaxAge = Duration{age}
	}
	return nil
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.InboxDir, &c.ReceiptsDir, &c.SummariesDir, &c.BookmarksDir,
		&c.LogFile, &c.StatusFile, &c.LockFile, &c.RcloneConfig,
	}
	for _, p := range paths {
		expanded, err := homedirExpand(*p)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("expand %q", *p))
		}
		*p = expanded
	}

	// A local remote is a path too.
	if c.Backend == BackendLocal {
		expanded, err := homedirExpand(c.Remote)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("expand %q", c.Remote))
		}
		c.Remote = expanded
	}
	return nil
}

// RemotePath returns the location of `folder` under the remote root.
func (c Config) RemotePath(folder string) string {
	return JoinRemote(c.Remote, folder)
}

// JoinRemote joins a folder onto a remote root. Roots that are a bare
// remote name such as "gdrive:" are joined without a separator.
func JoinRemote(root, folder string) string {
	if root == "" {
		return folder
	}
	if strings.HasSuffix(root, ":") || strings.HasSuffix(root, "/") {
		return root + folder
	}
	return root + "/" + folder
}
