package bugtool

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/vaultsync/cmd/util"
	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
	"github.com/sidkik/vaultsync/pkg/transfer"
	"github.com/sidkik/vaultsync/pkg/version"
)

const archiveRoot = "vaultsync-bug-info"

// Mocked out for unit testing.
var (
	fs                         = afero.NewOsFs()
	stdout           io.Writer = os.Stdout
	loadConfig                 = config.Load
	getRcloneVersion           = func(cfg config.Config) (string, error) {
		v, err := transfer.NewRclone(cfg.Rclone, cfg.RcloneConfig).Version(context.Background())
		if err != nil {
			return "", err
		}
		return v.Original(), nil
	}
)

// New creates a new `bug-tool` command.
func New() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bug-tool",
		Short: "Generate an archive for debugging vaultsync",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			configPath, _ := cmd.Flags().GetString("config")
			if err := run(configPath, out); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "path for archive")
	return cmd
}

func run(configPath, out string) error {
	tmpdir, err := afero.TempDir(fs, "", "vaultsync-bug-tool")
	if err != nil {
		return errors.NewFriendlyError("Failed to create out directory:\n%s", err)
	}
	defer func() {
		if err := fs.RemoveAll(tmpdir); err != nil {
			log.WithError(err).Warn("Failed to remove temporary directory")
		}
	}()

	setupInfo(tmpdir, configPath)

	if out == "" {
		out = fmt.Sprintf("%s-%s.tar.gz", archiveRoot, time.Now().Format("2006-01-02T150405"))
	}
	if err := writeArchive(tmpdir, out); err != nil {
		return errors.NewFriendlyError("Failed to write the archive:\n%s", err)
	}

	msg := `Created bug information archive at '%s'.
You may want to edit the archive before sharing it. Log lines include file
and remote paths.
The archive contains:
 * The sync log.
 * The status record of the last run.
 * The resolved configuration.
 * The version of vaultsync and rclone.
`
	fmt.Fprintf(stdout, msg, out)
	return nil
}

func setupInfo(root, configPath string) {
	if err := setupVersion(root, configPath); err != nil {
		log.WithError(err).Warn("Failed to setup version info")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load config")
		return
	}

	if err := setupConfig(root, cfg); err != nil {
		log.WithError(err).Warn("Failed to setup config")
	}

	files := map[string]string{
		cfg.LogFile:    "sync.log",
		cfg.StatusFile: "status.json",
	}
	for src, name := range files {
		if err := copyFile(src, filepath.Join(root, name)); err != nil {
			log.WithError(err).WithField("path", src).Warn("Failed to copy file")
		}
	}
}

func setupConfig(root string, cfg config.Config) error {
	configBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, filepath.Join(root, "config.yaml"), configBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

func setupVersion(root, configPath string) error {
	outFile, err := fs.Create(filepath.Join(root, "version"))
	if err != nil {
		return errors.WithContext(err, "create")
	}
	defer outFile.Close()

	fmt.Fprintf(outFile, "vaultsync version: %s\n", version.String())

	cfg, err := loadConfig(configPath)
	if err != nil {
		return errors.WithContext(err, "load config")
	}

	rcloneVersion, err := getRcloneVersion(cfg)
	if err != nil {
		return errors.WithContext(err, "get rclone version")
	}
	fmt.Fprintf(outFile, "rclone version:    %s\n", rcloneVersion)
	return nil
}

func copyFile(src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.WithContext(err, "copy")
	}
	return nil
}

// archiveEntry is a file or directory under the bug info root.
type archiveEntry struct {
	path string
	info os.FileInfo
}

// writeArchive packs every entry under `root` into a gzipped tarball at
// `outPath`, rooted at archiveRoot.
func writeArchive(root, outPath string) error {
	var entries []archiveEntry
	err := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		entries = append(entries, archiveEntry{path, fi})
		return nil
	})
	if err != nil {
		return errors.WithContext(err, "list bug info")
	}

	out, err := fs.Create(outPath)
	if err != nil {
		return errors.WithContext(err, "create archive")
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	tw := tar.NewWriter(gzw)
	for _, entry := range entries {
		name, err := filepath.Rel(root, entry.path)
		if err != nil {
			return errors.WithContext(err, "relative path")
		}
		if err := addToArchive(tw, filepath.Join(archiveRoot, name), entry); err != nil {
			return errors.WithContext(err, fmt.Sprintf("add %s", name))
		}
	}

	if err := tw.Close(); err != nil {
		return errors.WithContext(err, "close tar")
	}
	return gzw.Close()
}

func addToArchive(tw *tar.Writer, name string, entry archiveEntry) error {
	header, err := tar.FileInfoHeader(entry.info, "")
	if err != nil {
		return errors.WithContext(err, "header")
	}
	header.Name = name
	if err := tw.WriteHeader(header); err != nil {
		return errors.WithContext(err, "write header")
	}

	if !entry.info.Mode().IsRegular() {
		return nil
	}

	f, err := fs.Open(entry.path)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}
