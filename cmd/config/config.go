package config

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/vaultsync/cmd/util"
	"github.com/sidkik/vaultsync/pkg/config"
	"github.com/sidkik/vaultsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout      io.Writer = os.Stdout
	stdin       io.Reader = os.Stdin
	loadConfig            = config.Load
	writeConfig           = config.Write
	listRemotes           = listRemotesImpl
)

type setupOptions struct {
	remote      string
	vault       string
	inboxMaxAge string
}

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts setupOptions
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the vaultsync configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			configPath, _ := cmd.Flags().GetString("config")
			if err := setupConfig(configPath, cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.remote, "remote", "",
		"Set the remote root, e.g. `gdrive:vault`. "+
			"Optional: If not set, `vaultsync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.vault, "vault", "",
		"Set the local vault directory. The inbox, receipts, summaries and "+
			"bookmarks directories are created inside it. "+
			"Optional: If not set, `vaultsync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.inboxMaxAge, "inbox-max-age", "",
		"Set how old remote inbox files may be and still be downloaded, e.g. `72h` or `3d`. "+
			"Optional: If not set, `vaultsync config` will interactively prompt.")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration, including environment overrides",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			configPath, _ := cmd.Flags().GetString("config")
			if err := showConfig(configPath); err != nil {
				util.HandleFatalError(err)
			}
		},
	})

	// Setup the commands for querying single fields, for use in scripts.
	type getterSpec struct {
		use, short string
		fn         func(config.Config) string
	}

	getters := []getterSpec{
		{
			use:   "get-remote",
			short: "Get the configured remote root",
			fn:    func(cfg config.Config) string { return cfg.Remote },
		},
		{
			use:   "get-status-file",
			short: "Get the path of the status record",
			fn:    func(cfg config.Config) string { return cfg.StatusFile },
		},
		{
			use:   "get-log-file",
			short: "Get the path of the sync log",
			fn:    func(cfg config.Config) string { return cfg.LogFile },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				var configPath string
				if cmd != nil {
					configPath, _ = cmd.Flags().GetString("config")
				}

				cfg, err := loadConfig(configPath)
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
					return
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

func showConfig(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return errors.WithContext(err, "read config")
	}

	configBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}
	_, err = stdout.Write(configBytes)
	return err
}

func setupConfig(configPath string, cliOpts setupOptions) error {
	path, err := config.ResolvePath(configPath)
	if err != nil {
		return errors.WithContext(err, "resolve config path")
	}

	cfg, err := generateConfig(configPath, cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := writeConfig(path, cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func remoteValidationFn(remote string) (string, bool) {
	if strings.TrimSpace(remote) == "" {
		return "The remote can't be empty.", false
	}

	if strings.ContainsAny(remote, " \t") {
		return "The remote can't contain whitespace.", false
	}

	if !strings.Contains(remote, ":") && !filepath.IsAbs(remote) {
		return "The remote must be an rclone remote such as `gdrive:vault`, " +
			"or an absolute path when using the local backend.", false
	}
	return "", true
}

func vaultValidationFn(dir string) (string, bool) {
	if strings.TrimSpace(dir) == "" {
		return "The vault directory can't be empty.", false
	}

	if !filepath.IsAbs(dir) && !strings.HasPrefix(dir, "~") {
		return "The vault directory must be an absolute path.", false
	}
	return "", true
}

func ageValidationFn(age string) (string, bool) {
	if _, err := config.ParseAge(age); err != nil {
		return "The age must be a positive duration such as `72h` or `3d`.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is. Settings that aren't prompted for keep their current
// values.
func generateConfig(configPath string, cliOpts setupOptions) (config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.WithError(err).Debug("Failed to read current config")
		cfg = config.Default()
	}

	defaults := guessDefaults(cfg)
	currVault := filepath.Dir(cfg.InboxDir)
	currAge := cfg.InboxMaxAge.String()

	answers := cliOpts
	var prompts []prompt
	if cliOpts.remote == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the remote root to sync with, in rclone's `remote:path` syntax.\n" +
				"The inbox, receipts, summaries and bookmarks folders live under it.",
			prompt:        "Remote",
			defaultAnswer: defaults.remote,
			currAnswer:    cfg.Remote,
			field:         &answers.remote,
			validationFn:  remoteValidationFn,
		})
	}

	if cliOpts.vault == "" {
		prompts = append(prompts, prompt{
			helpString:    "Enter the local vault directory.",
			prompt:        "Vault directory",
			defaultAnswer: defaults.vault,
			currAnswer:    currVault,
			field:         &answers.vault,
			validationFn:  vaultValidationFn,
		})
	}

	if cliOpts.inboxMaxAge == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter how old a scan in the remote inbox may be and still be downloaded.\n" +
				"Older scans are assumed to have been processed already.",
			prompt:        "Inbox max age",
			defaultAnswer: defaults.inboxMaxAge,
			currAnswer:    currAge,
			field:         &answers.inboxMaxAge,
			validationFn:  ageValidationFn,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.Config{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	for _, opt := range []struct {
		value string
		check func(string) (string, bool)
	}{
		{answers.remote, remoteValidationFn},
		{answers.vault, vaultValidationFn},
		{answers.inboxMaxAge, ageValidationFn},
	} {
		if msg, ok := opt.check(opt.value); !ok {
			return config.Config{}, errors.New(msg)
		}
	}

	age, _ := config.ParseAge(answers.inboxMaxAge)
	cfg.Remote = answers.remote
	cfg.InboxDir = filepath.Join(answers.vault, "inbox")
	cfg.ReceiptsDir = filepath.Join(answers.vault, "receipts")
	cfg.SummariesDir = filepath.Join(answers.vault, "summaries")
	cfg.BookmarksDir = filepath.Join(answers.vault, "bookmarks")
	cfg.InboxMaxAge = config.Duration{Duration: age}
	return cfg, nil
}

// guessDefaults tries to guess reasonable answers for the prompts.
func guessDefaults(cfg config.Config) (defaults setupOptions) {
	defaults.vault = "~/vault"
	defaults.inboxMaxAge = config.Duration{Duration: config.DefaultInboxMaxAge}.String()

	if cfg.Backend != config.BackendRclone {
		return defaults
	}

	remotes, err := listRemotes(cfg.Rclone)
	if err != nil {
		log.WithError(err).Info("Failed to list rclone remotes")
		return defaults
	}
	if len(remotes) != 0 {
		defaults.remote = remotes[0] + "vault"
	}
	return defaults
}

// listRemotesImpl returns the remotes configured in rclone, such as
// "gdrive:".
func listRemotesImpl(rclone string) ([]string, error) {
	out, err := exec.CommandContext(context.Background(), rclone, "listremotes").Output()
	if err != nil {
		return nil, errors.WithContext(err, "rclone listremotes")
	}
	return strings.Fields(string(out)), nil
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Separate the prompts with an empty line.
	defer fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	in := bufio.NewReader(stdin)
	if suggestions := suggestedAnswers(defaultAnswer, currAnswer); len(suggestions) != 0 {
		resp, chosen, err := chooseSuggestion(in, suggestions)
		if err != nil || chosen {
			return resp, err
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	return readLine(in)
}

func suggestedAnswers(defaultAnswer, currAnswer string) (suggestions []string) {
	if defaultAnswer != "" {
		suggestions = append(suggestions, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		suggestions = append(suggestions, currAnswer)
	}
	return suggestions
}

// chooseSuggestion lists the suggestions followed by a manual entry option,
// and reads until the user picks a valid one. An empty line picks the first
// suggestion. `chosen` is false if the user asked to enter the answer
// manually.
func chooseSuggestion(in *bufio.Reader, suggestions []string) (resp string, chosen bool, err error) {
	manual := len(suggestions) + 1

	fmt.Fprintln(stdout)
	for i, suggestion := range suggestions {
		if i == 0 {
			suggestion += " (recommended)"
		}
		fmt.Fprintf(stdout, "\t%d. %s\n", i+1, suggestion)
	}
	fmt.Fprintf(stdout, "\t%d. (Enter manually)\n\n", manual)

	for {
		fmt.Fprintf(stdout, "Please choose one [1-%d]: ", manual)
		line, err := readLine(in)
		if err != nil {
			return "", false, err
		}
		if line == "" {
			return suggestions[0], true, nil
		}

		choice, err := strconv.Atoi(line)
		switch {
		case err != nil, choice < 1, choice > manual:
			continue
		case choice == manual:
			return "", false, nil
		default:
			return suggestions[choice-1], true, nil
		}
	}
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
