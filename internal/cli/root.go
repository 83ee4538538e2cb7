package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/compgroup/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// v layers defaults, config file, environment and flags.
	v *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the convert2group CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "convert2group",
		Short: "Replace single computations with group computations",
		Long: `convert2group reconciles group computations with the single computations
they supersede. For each group computation it expands the group, finds the
single computations that do the same work, archives and disposes of them,
carves out the series whose single computations must stay, and enables the
group computation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)).WithCode(ErrCodeBadArgs)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./convert2group.yaml)")
	cmd.PersistentFlags().String(config.KeyDB, "", "path to SQLite database")
	_ = opts.v.BindPFlag(config.KeyDB, cmd.PersistentFlags().Lookup(config.KeyDB))
	_ = opts.v.BindPFlag(config.KeyVerbose, cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewListCommand(opts))

	return cmd
}

// loadConfig merges the layered settings for the running command.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.v, o.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err).WithCode(ErrCodeBadArgs)
	}
	return cfg, nil
}

// setupLogging installs a text logger on w, at Debug level when verbose.
func setupLogging(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// Execute runs the command tree with args, reports any error in the
// selected format and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Argument and flag parsing errors come from cobra unwrapped.
		err = WrapExitError(ExitCommandError, "invalid usage", err).WithCode(ErrCodeBadArgs)
	}
	format := "text"
	if f := cmd.PersistentFlags().Lookup("format"); f != nil && f.Value.String() == "json" {
		format = "json"
	}
	out := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}
	_ = out.Error(GetErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}
