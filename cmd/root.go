package cmd

import (
	"context"
	"io"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/vaultsync/cmd/bugtool"
	configCmd "github.com/sidkik/vaultsync/cmd/config"
	"github.com/sidkik/vaultsync/cmd/logs"
	statusCmd "github.com/sidkik/vaultsync/cmd/status"
	"github.com/sidkik/vaultsync/cmd/util"
	"github.com/sidkik/vaultsync/cmd/version"
	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
	"github.com/sidkik/vaultsync/pkg/logging"
	"github.com/sidkik/vaultsync/pkg/sync"
	"github.com/sidkik/vaultsync/pkg/transfer"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "VAULTSYNC_LOG_VERBOSE"

// Mocked out for unit testing.
var (
	getenv            = os.Getenv
	console io.Writer = os.Stderr
	newClock          = clockwork.NewRealClock
	osFs              = afero.NewOsFs()
)

type options struct {
	inbox      bool
	upload     bool
	dryRun     bool
	configPath string
}

// Execute runs the main CLI process.
func Execute() {
	if err := New().Execute(); err != nil {
		if errors.Is(err, sync.ErrAlreadyRunning) {
			util.Exit(util.ExitAlreadyRunning)
			return
		}
		util.HandleFatalError(err)
	}
}

// New creates the root `vaultsync` command. Run without a subcommand, it
// performs one sync.
func New() *cobra.Command {
	var opts options
	rootCmd := &cobra.Command{
		Use:   "vaultsync",
		Short: "Sync a local vault with its cloud remote",
		Long: "Download new scans from the remote inbox, and upload receipts, " +
			"summaries and bookmarks to the remote.\n\n" +
			"Files are only ever copied. Nothing is deleted on either side.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,

		// The error is handled by Execute, so we silence errors here to
		// avoid double printing.
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&opts.inbox, "inbox", false, "Only download the remote inbox")
	flags.BoolVar(&opts.upload, "upload", false, "Only upload the vault")
	flags.BoolVar(&opts.dryRun, "dry-run", false,
		"Report what would be transferred without changing anything")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to the config file (default "+config.DefaultConfigPath+")")

	rootCmd.AddCommand(
		bugtool.New(),
		configCmd.New(),
		logs.New(),
		statusCmd.New(),
		version.New(),
	)
	return rootCmd
}

func (opts options) mode() (config.Mode, error) {
	switch {
	case opts.inbox && opts.upload:
		return "", errors.NewFriendlyError(
			"--inbox and --upload can't be combined. Pass neither to sync both ways.")
	case opts.inbox:
		return config.ModeInbox, nil
	case opts.upload:
		return config.ModeUpload, nil
	}
	return config.ModeFull, nil
}

func run(ctx context.Context, opts options) error {
	mode, err := opts.mode()
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return errors.WithContext(err, "load config")
	}
	cfg.Mode = mode
	cfg.DryRun = opts.dryRun

	logCfg := logging.Config{
		File:    cfg.LogFile,
		Console: console,
		Verbose: getenv(verboseLogKey) == "true",
	}
	logger, logErr := logging.New(logCfg)
	if logErr != nil {
		logger = logging.NewConsole(logCfg)
	}
	defer logger.Close()

	clock := newClock()
	tr, err := transfer.New(cfg, osFs, clock)
	if err != nil {
		return errors.WithContext(err, "create transferer")
	}

	coordinator := sync.NewCoordinator(cfg, tr, logger, clock)
	if logErr != nil {
		coordinator.SetupFailed(errors.WithContext(logErr, "open log"))
	}
	_, err = coordinator.Run(ctx, cfg.Mode, cfg.DryRun)
	return err
}
