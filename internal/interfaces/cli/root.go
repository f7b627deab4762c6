// Package cli implements the molsearch command line: index maintenance,
// substructure and similarity queries against a local store, and serve.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/molsearch/internal/app"
	"github.com/turtacn/molsearch/internal/config"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// AppFactory builds the App a command operates on.
type AppFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app.App, error)

func defaultFactory(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	Server       string

	factory AppFactory
}

// RootOption customises NewRootCommand.
type RootOption func(*RootOptions)

// WithAppFactory replaces app.New, mainly for tests.
func WithAppFactory(f AppFactory) RootOption {
	return func(o *RootOptions) { o.factory = f }
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	ConfigPath   string
	Logger       logging.Logger
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	// Server is the base URL of a molsearch server; empty means the
	// local store.
	Server string

	factory AppFactory
}

// OpenApp builds the App for one command.  The caller closes it.
func (c *CLIContext) OpenApp(ctx context.Context) (*app.App, error) {
	return c.factory(ctx, c.Config, c.Logger)
}

// NewRootCommand creates the root command with global flags and every
// subcommand.
func NewRootCommand(options ...RootOption) *cobra.Command {
	opts := &RootOptions{factory: defaultFactory}
	for _, o := range options {
		o(opts)
	}

	cmd := &cobra.Command{
		Use:     "molsearch",
		Short:   "Chemical substructure and similarity search",
		Long:    "molsearch indexes molecular graphs and answers substructure and\nTanimoto similarity queries using codebook screening and graph matching.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", app.Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./molsearch.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "table", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "global operation timeout (0 means none)")
	pf.StringVar(&opts.Server, "server", os.Getenv("MOLSEARCH_SERVER"), "run against a molsearch server at this URL instead of the local store")

	cmd.AddCommand(
		NewIndexCmd(),
		NewRemoveCmd(),
		NewSubstructureCmd(),
		NewSimilarityCmd(),
		NewRecountCmd(),
		NewCodebooksCmd(),
		NewServeCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfgPath, cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		ConfigPath:   cfgPath,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
		Timeout:      opts.Timeout,
		Server:       opts.Server,
		factory:      opts.factory,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority env > file > defaults.
// Without --config the first existing default location is used.
func initConfig(opts *RootOptions) (string, *config.Config, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.LoadOrDefault(opts.ConfigPath)
		return opts.ConfigPath, cfg, err
	}

	searchPaths := []string{"./molsearch.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".molsearch", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/molsearch/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			cfg, err := config.Load(p)
			return p, cfg, err
		}
	}
	cfg, err := config.LoadFromEnv()
	return "", cfg, err
}

// initLogger creates a console logger on stderr so stdout stays clean for
// results.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := logging.LevelWarn
	switch strings.ToLower(opts.LogLevel) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelError:
		level = strings.ToLower(opts.LogLevel)
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.CodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.CodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// withApp opens the App, applies --timeout and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, cc *CLIContext, a *app.App) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if cc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cc.Timeout)
		defer cancel()
	}
	a, err := cc.OpenApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			cc.Logger.Warn("close failed", logging.Err(cerr))
		}
		_ = cc.Logger.Sync()
	}()
	return fn(ctx, cc, a)
}

// Execute is the main entry point for the CLI application.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd.OutOrStdout(), data)
	}
	switch strings.ToLower(cliCtx.OutputFormat) {
	case "json":
		return printJSON(cmd.OutOrStdout(), data)
	case "table":
		if tp, ok := data.(tableProvider); ok {
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
			return nil
		}
	}
	return printText(cmd.OutOrStdout(), data)
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(w, v)
	case fmt.Stringer:
		fmt.Fprintln(w, v.String())
	case tableProvider:
		for _, row := range v.TableRows() {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
	return nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}

// FormatTable renders headers and rows with tablewriter.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	for _, row := range rows {
		padded := make([]string, len(headers))
		copy(padded, row)
		table.Append(padded)
	}
	table.Render()
	return sb.String()
}
