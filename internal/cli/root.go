package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/istore/internal/config"
	"github.com/roach88/istore/internal/entity"
	"github.com/roach88/istore/internal/logging"
	"github.com/roach88/istore/internal/storage/builtin"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	SearchPaths []string

	cfg    *config.Config
	logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the istore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "istore",
		Short: "istore - entity instance store",
		Long:  "Load, validate, convert and serve self-describing entity instances and their metadata.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./istore.yaml)")
	cmd.PersistentFlags().StringSliceVar(&opts.SearchPaths, "search-path", nil, "additional metadata search path URL")

	cmd.AddCommand(NewUUIDCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// setup loads configuration and builds the logger once.
func (o *RootOptions) setup() error {
	if o.cfg != nil {
		return nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.LogDevelopment)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

// Config returns the loaded configuration.
func (o *RootOptions) Config() *config.Config {
	return o.cfg
}

// Logger returns the configured logger, or a no-op logger before setup.
func (o *RootOptions) Logger() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// newStore builds a store with every built-in driver and the configured
// search paths followed by those given on the command line.
func (o *RootOptions) newStore(extra ...entity.StoreOption) (*entity.Store, error) {
	if err := o.setup(); err != nil {
		return nil, err
	}
	paths := slices.Concat(o.cfg.SearchPaths, o.SearchPaths)
	opts := []entity.StoreOption{
		entity.WithRegistry(builtin.Registry()),
		entity.WithLogger(o.Logger()),
		entity.WithSearchPaths(paths...),
	}
	return entity.NewStore(append(opts, extra...)...), nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
