package transfer

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/sidkik/vaultsync/pkg/errors"
)

// MinRcloneVersion is the oldest rclone that supports every flag we pass.
const MinRcloneVersion = "1.50.0"

// Variables mocked for unit testing.
var (
	lookPath   = exec.LookPath
	runCommand = func(cmd *exec.Cmd) ([]byte, error) {
		return cmd.CombinedOutput()
	}
)

var rcloneVersionPattern = regexp.MustCompile(`(?m)^rclone v?(\S+)`)

// Rclone runs `rclone copy`.
type Rclone struct {
	// Binary is the rclone executable, either a path or a name on $PATH.
	Binary string

	// ConfigFile is passed as --config when set.
	ConfigFile string
}

// NewRclone creates a new Rclone transferer.
func NewRclone(binary, configFile string) *Rclone {
	if binary == "" {
		binary = "rclone"
	}
	return &Rclone{Binary: binary, ConfigFile: configFile}
}

// Args returns the arguments to rclone for copying src to dst.
func (r *Rclone) Args(src, dst string, opts Options) []string {
	args := []string{"copy", src, dst, "--verbose"}
	if opts.UpdateOnly {
		args = append(args, "--update")
	}
	if opts.MaxAge > 0 {
		args = append(args, "--max-age", fmt.Sprintf("%ds", int64(opts.MaxAge/time.Second)))
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	if r.ConfigFile != "" {
		args = append(args, "--config", r.ConfigFile)
	}
	return args
}

// Copy implements Transferer. rclone logs to stderr, so the transcript is
// the combined output of the command.
func (r *Rclone) Copy(ctx context.Context, src, dst string, opts Options) (string, error) {
	cmd := exec.CommandContext(ctx, r.Binary, r.Args(src, dst, opts)...)
	out, err := runCommand(cmd)
	transcript := string(out)
	if err != nil {
		if isNotFound(err) {
			return transcript, MissingRclone(r.Binary, err)
		}

		msg := fmt.Sprintf("rclone copy %s %s", src, dst)
		if last := lastLine(transcript); last != "" {
			msg = fmt.Sprintf("%s (%s)", msg, last)
		}
		return transcript, errors.WithContext(err, msg)
	}
	return transcript, nil
}

// Check implements Transferer. It fails if rclone can't be found, can't be
// run, or is older than MinRcloneVersion.
func (r *Rclone) Check(ctx context.Context) error {
	if _, err := lookPath(r.Binary); err != nil {
		return MissingRclone(r.Binary, err)
	}

	installed, err := r.Version(ctx)
	if err != nil {
		return MissingRclone(r.Binary, err)
	}

	minVersion := goversion.Must(goversion.NewVersion(MinRcloneVersion))
	if installed.LessThan(minVersion) {
		return errors.NewFriendlyError("rclone %s is too old. "+
			"Please upgrade to at least version %s.", installed, minVersion)
	}
	return nil
}

// Version returns the version of the installed rclone.
func (r *Rclone) Version(ctx context.Context) (*goversion.Version, error) {
	out, err := runCommand(exec.CommandContext(ctx, r.Binary, "version"))
	if err != nil {
		return nil, errors.WithContext(err, "rclone version")
	}

	match := rcloneVersionPattern.FindStringSubmatch(string(out))
	if match == nil {
		return nil, errors.Newf("unrecognized rclone version output %q", lastLine(string(out)))
	}

	v, err := goversion.NewVersion(match[1])
	if err != nil {
		return nil, errors.WithContext(err, "parse rclone version")
	}
	return v, nil
}

// MissingRclone wraps the error from failing to run rclone.
func MissingRclone(binary string, err error) error {
	return errors.MissingTool{Name: binary, Err: err}
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
