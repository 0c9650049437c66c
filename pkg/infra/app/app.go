// Package app builds service commands with Cobra, loading options from a
// YAML file, QUIZMIND_* style environment variables and flags, in that
// order of increasing precedence.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// App is the main application structure.
type App struct {
	name        string
	shortDesc   string
	description string
	options     CliOptions
	runFunc     RunFunc
	cmd         *cobra.Command
	v           *viper.Viper
	noVersion   bool
	noConfig    bool
}

// RunFunc is the application's run function.
type RunFunc func() error

// Option configures an App.
type Option func(*App)

// WithName sets the application name. It also names the config file and
// the environment variable prefix.
func WithName(name string) Option {
	return func(a *App) {
		a.name = name
	}
}

// WithShortDescription sets the short description.
func WithShortDescription(desc string) Option {
	return func(a *App) {
		a.shortDesc = desc
	}
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions sets the CLI options.
func WithOptions(opts CliOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the run function.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithNoVersion disables the version flag.
func WithNoVersion() Option {
	return func(a *App) {
		a.noVersion = true
	}
}

// WithNoConfig disables config file loading.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// NewApp creates a new application instance.
func NewApp(opts ...Option) *App {
	a := &App{
		name: filepath.Base(os.Args[0]),
		v:    viper.New(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.shortDesc,
		Long:         a.description,
		RunE:         a.runCommand,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	if !a.noConfig {
		cmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	}
	if !a.noVersion {
		version.AddFlags(cmd.PersistentFlags())
	}

	if a.options != nil {
		fss := a.options.Flags()
		for _, name := range fss.Order {
			cmd.Flags().AddFlagSet(fss.FlagSets[name])
		}
	}

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}

	if !a.noConfig {
		if err := a.loadConfig(cmd); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc != nil {
		return a.runFunc()
	}
	return nil
}

// loadConfig merges the config file and environment into the options and
// re-applies explicitly set flags on top.
func (a *App) loadConfig(cmd *cobra.Command) error {
	v := a.v
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+a.name))
		v.AddConfigPath("/etc/" + a.name)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	expandEnvVars(v)

	v.SetEnvPrefix(EnvPrefix(a.name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.options == nil {
		return nil
	}

	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for name, val := range changed {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}
	return nil
}

// EnvPrefix returns the environment variable prefix for an application name,
// e.g. "quizmind-rag" becomes "QUIZMIND_RAG".
func EnvPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands ${VAR} and $VAR references in string config values.
// Unset variables are left as written.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(s, func(match string) string {
			name := strings.TrimPrefix(match, "$")
			name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
			if val, ok := os.LookupEnv(name); ok && val != "" {
				return val
			}
			return match
		})
		if expanded != s {
			v.Set(key, expanded)
		}
	}
}

// Run executes the application and exits the process on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
