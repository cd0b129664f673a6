// Package cli provides the contractpdf command-line interface.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/config"
)

// Version information set at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// App is the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	verbosity  int
}

// New creates the CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "contractpdf",
		Short: "Compose signed contract PDFs",
		Long: `contractpdf fills a contract template's form with the signer's data,
stamps the handwritten signature on every page and writes the flattened PDF.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnv(app.envFile)
		},
	}

	flags := app.root.PersistentFlags()
	flags.StringVarP(&app.configPath, "config", "c", "", "Path to the YAML configuration file")
	flags.StringVar(&app.envFile, "env-file", ".env", "Path to a .env file; missing files are ignored")
	flags.IntVarP(&app.verbosity, "verbosity", "v", -1, "Log verbosity (overrides config)")

	app.root.AddCommand(
		app.newGenerateCmd(),
		app.newFieldsCmd(),
		app.newServeCmd(),
		app.newVersionCmd(),
	)
	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI until it finishes or receives SIGINT/SIGTERM.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments.
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// Run executes the CLI with os.Args and exits on failure.
func Run() {
	if err := New().Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

// loadConfig reads the configuration file, or the defaults when none was
// given, and applies environment overrides and logging settings.
func (a *App) loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadConfig(a.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if a.verbosity >= 0 {
		cfg.Logging.Verbosity = a.verbosity
	}
	if err := initLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging applies the logging section to klog. klog has no severity
// filter for stderr, so warn and error only drop the verbose levels.
func initLogging(cfg config.LoggingConfig) error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)

	v := cfg.KlogVerbosity()
	if cfg.Level == "warn" || cfg.Level == "error" {
		v = 0
	}
	if err := fs.Set("v", strconv.Itoa(v)); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	return nil
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "contractpdf version %s\n", Version)
			fmt.Fprintf(a.stdout, "Build time: %s\n", BuildTime)
		},
	}
}
