package version

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/vaultsync/cmd/util"
	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
	"github.com/sidkik/vaultsync/pkg/transfer"
	"github.com/sidkik/vaultsync/pkg/version"
)

// Mocked out for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of vaultsync and its transfer tool.",
		Long: "Print the version of vaultsync, and the version of rclone\n" +
			"that it would use to sync.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			configPath, _ := cmd.Flags().GetString("config")
			if err := run(cmd.Context(), configPath); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(ctx context.Context, configPath string) error {
	fmt.Fprintf(stdout, "vaultsync version: %s\n", version.String())

	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.WithContext(err, "load config")
	}

	if cfg.Backend != config.BackendRclone {
		fmt.Fprintf(stdout, "transfer backend:  %s\n", cfg.Backend)
		return nil
	}

	rcloneVersion, err := getRcloneVersion(ctx, transfer.NewRclone(cfg.Rclone, cfg.RcloneConfig))
	if err != nil {
		log.WithError(err).Debug("Failed to get rclone version")
		fmt.Fprintf(stdout, "rclone version:    not installed (%s)\n", cfg.Rclone)
		return nil
	}
	fmt.Fprintf(stdout, "rclone version:    %s\n", rcloneVersion)
	return nil
}

var getRcloneVersion = func(ctx context.Context, rclone *transfer.Rclone) (string, error) {
	v, err := rclone.Version(ctx)
	if err != nil {
		return "", err
	}
	return v.Original(), nil
}
