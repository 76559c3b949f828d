package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

const defaultBaseURL = "http://localhost:8000"

type profile struct {
	BaseURL   string `yaml:"baseUrl"`
	APIPrefix string `yaml:"apiPrefix,omitempty"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func newUI() *ui {
	// plain output when piped so scripts can parse it
	color.NoColor = color.NoColor || !isTerminal(int(os.Stdout.Fd()))
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

func main() {
	ui := newUI()
	if err := newRootCmd(ui).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func newRootCmd(ui *ui) *cobra.Command {
	baseURL := getenv("IMYME_BASE_URL", defaultBaseURL)
	apiPrefix := getenv("IMYME_API_PREFIX", "/api/v1")
	profileName := getenv("IMYME_PROFILE", "")

	root := &cobra.Command{
		Use:   "imyme",
		Short: "imyme AI CLI",
		Long:  "imyme AI CLI for answer analysis, transcription, and GPU warm-up.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL of the imyme AI server")
	root.PersistentFlags().StringVar(&apiPrefix, "api-prefix", apiPrefix, "API route prefix")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		prof := cfg.Profiles[resolveProfileName(profileName, cfg)]

		flags := cmd.Flags()
		if !flags.Changed("base-url") && strings.TrimSpace(os.Getenv("IMYME_BASE_URL")) == "" && prof.BaseURL != "" {
			baseURL = prof.BaseURL
		}
		if !flags.Changed("api-prefix") && strings.TrimSpace(os.Getenv("IMYME_API_PREFIX")) == "" && prof.APIPrefix != "" {
			apiPrefix = prof.APIPrefix
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(submitCmd(&baseURL, &apiPrefix, ui))
	root.AddCommand(statusCmd(&baseURL, &apiPrefix, ui))
	root.AddCommand(transcribeCmd(&baseURL, &apiPrefix, ui))
	root.AddCommand(warmupCmd(&baseURL, &apiPrefix, ui))
	return root
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL   string
		apiPrefix string
		noPrompt  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			baseURL = firstNonEmpty(baseURL, prof.BaseURL, defaultBaseURL)
			apiPrefix = firstNonEmpty(apiPrefix, prof.APIPrefix, "/api/v1")
			if !noPrompt && isTerminal(int(os.Stdin.Fd())) {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Base URL", baseURL)
				apiPrefix = prompt(reader, "API prefix", apiPrefix)
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			prof.APIPrefix = strings.TrimSpace(apiPrefix)
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}
			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL of the imyme AI server")
	cmd.Flags().StringVar(&apiPrefix, "api-prefix", "", "API route prefix")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func helpTemplate(ui *ui) string {
	title := ui.title("imyme")
	return fmt.Sprintf(`%s: CLI for the imyme AI server

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  imyme init --base-url http://localhost:8000
  imyme submit --text "트랜잭션은 ..." --criteria '{"keywords":["락"]}' --wait
  imyme status 3f2b... --wait
  imyme transcribe https://cdn.example.com/answer.m4a
  imyme warmup

`, title, configPath())
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("IMYME_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".imyme", "config.yaml")
}

func isTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
