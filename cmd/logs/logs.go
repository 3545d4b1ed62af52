package logs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/buger/goterm"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/vaultsync/cmd/util"
	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
)

// Mocked out for unit testing.
var (
	fs                   = afero.NewOsFs()
	stdout     io.Writer = os.Stdout
	loadConfig           = config.Load
	isTerminal           = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd())
	}
)

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

var logLinePattern = regexp.MustCompile(`^(\S+) \[(DEBUG|INFO|WARN|ERROR)\] (.*)$`)

type options struct {
	lines int
	level string
	run   string
}

type logLine struct {
	raw   string
	level string
}

// New creates a new `logs` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the most recent lines of the sync log",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			configPath, _ := cmd.Flags().GetString("config")
			if err := run(configPath, opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 20,
		"The number of lines to print. Zero prints the whole log.")
	cmd.Flags().StringVar(&opts.level, "level", "INFO",
		"Only print lines at this level or above (DEBUG, INFO, WARN or ERROR)")
	cmd.Flags().StringVar(&opts.run, "run", "",
		"Only print lines from the run with this ID")
	return cmd
}

func run(configPath string, opts options) error {
	minRank, ok := levelRank[strings.ToUpper(opts.level)]
	if !ok {
		return errors.NewFriendlyError("Unknown log level %q. "+
			"Expected one of DEBUG, INFO, WARN or ERROR.", opts.level)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return errors.WithContext(err, "read config")
	}

	f, err := fs.Open(cfg.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFriendlyError("No log found at %s. "+
				"It's created by the first sync.", cfg.LogFile)
		}
		return errors.WithContext(err, "open log")
	}
	defer f.Close()

	lines, err := readLines(f, minRank, opts.run, opts.lines)
	if err != nil {
		return errors.WithContext(err, "read log")
	}
	printLines(lines, isTerminal())
	return nil
}

// readLines returns the last `limit` lines of the log that pass the
// filters. Lines that don't look like log lines, such as continuations of
// multi-line messages, inherit the level of the line before them.
func readLines(r io.Reader, minRank int, runID string, limit int) ([]logLine, error) {
	var lines []logLine
	level := "INFO"
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		if match := logLinePattern.FindStringSubmatch(raw); match != nil {
			level = match[2]
		}

		if levelRank[level] < minRank {
			continue
		}
		if runID != "" && !strings.Contains(raw, "run="+runID) {
			continue
		}

		lines = append(lines, logLine{raw: raw, level: level})
		if limit > 0 && len(lines) > limit {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

func printLines(lines []logLine, colorize bool) {
	for _, line := range lines {
		out := line.raw
		if colorize {
			switch line.level {
			case "WARN":
				out = goterm.Color(out, goterm.YELLOW)
			case "ERROR":
				out = goterm.Color(out, goterm.RED)
			}
		}
		fmt.Fprintln(stdout, out)
	}
}
