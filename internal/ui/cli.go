// Package ui implements the airtime command line.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/airtime/internal/command"
	"github.com/javiermolinar/airtime/internal/config"
	"github.com/javiermolinar/airtime/internal/lifecycle"
	"github.com/javiermolinar/airtime/internal/logging"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

// DefaultUser is the session owner for CLI commands without --user.
const DefaultUser = "cli"

// App holds the CLI application state.
type App struct {
	config     *config.Config
	configPath string
	root       *cobra.Command

	debug   bool // Enable debug logging
	noColor bool
	user    string

	in  io.Reader
	out io.Writer
	now func() time.Time

	logger   *slog.Logger
	closeLog func()
	svc      *services
}

// NewApp creates the CLI. A nil cfg is loaded from --config (or the default
// path) before any command runs.
func NewApp(cfg *config.Config) *App {
	a := &App{
		config:   cfg,
		in:       os.Stdin,
		out:      os.Stdout,
		now:      time.Now,
		closeLog: func() {},
	}

	a.root = &cobra.Command{
		Use:   "airtime",
		Short: "Reserve broadcast slots in the monthly schedule grid",
		Long: `Airtime keeps one grid per month with a table per channel and
reserves or cancels morning, noon, day and evening broadcast slots in it.

Select a month first, then reserve or cancel slots on one of its days.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := a.root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default "+config.DefaultConfigPath()+")")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging (logs to "+logging.DebugLogPath+")")
	flags.StringVar(&a.user, "user", DefaultUser, "Session owner")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.configCmd())
	a.root.AddCommand(a.selectCmd())
	a.root.AddCommand(a.reserveCmd())
	a.root.AddCommand(a.cancelCmd())
	a.root.AddCommand(a.dayCmd())
	a.root.AddCommand(a.pruneCmd())
	a.root.AddCommand(a.sendCmd())
	a.root.AddCommand(a.serveCmd())

	return a
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(a.out, "airtime %s (commit: %s)\n", Version, Commit)
		},
	}
}

// setup loads the configuration and the logger. Stores are opened lazily.
func (a *App) setup(_ *cobra.Command, _ []string) error {
	if a.config == nil {
		path := a.configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a.config = cfg
	}

	if a.logger != nil {
		return nil
	}
	logger, closeFn, err := logging.New(logging.Options{
		Level:     a.config.Log.Level,
		Debug:     a.debug,
		DebugFile: a.config.Log.DebugFile,
	})
	if err != nil {
		return err
	}
	a.logger, a.closeLog = logger, closeFn

	setupColor(a.out, a.noColor)
	return nil
}

// ensureServices opens the stores and builds the dispatcher once.
func (a *App) ensureServices() (*services, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, err := openServices(a.config, a.logger, a.now)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *App) dispatcher() (*command.Dispatcher, error) {
	svc, err := a.ensureServices()
	if err != nil {
		return nil, err
	}
	return svc.dispatcher, nil
}

func (a *App) lifecycle() (*lifecycle.Manager, error) {
	svc, err := a.ensureServices()
	if err != nil {
		return nil, err
	}
	return svc.lifecycle, nil
}

// run dispatches req and prints the reply. A user-facing rejection is
// printed like the chat bot would and returned as the command's error.
func (a *App) run(ctx context.Context, req command.Request) error {
	d, err := a.dispatcher()
	if err != nil {
		return err
	}
	reply, err := d.Dispatch(ctx, a.user, req)
	if err != nil {
		if errors.Is(err, command.ErrNoPeriod) {
			if _, ok := req.(command.ViewDay); ok {
				return fmt.Errorf("%w: pass year and month", err)
			}
			return fmt.Errorf("%w: run \"airtime select\" or pass --month", err)
		}
		return err
	}
	printReport(a.out, reply.Text)
	return nil
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.ExecuteContext(context.Background())
}

// ExecuteContext runs the CLI application with ctx.
func (a *App) ExecuteContext(ctx context.Context) error {
	return a.root.ExecuteContext(ctx)
}

// SetArgs overrides os.Args[1:], for tests.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

// SetIO redirects the command input and output.
func (a *App) SetIO(in io.Reader, out io.Writer) {
	a.in, a.out = in, out
	a.root.SetOut(out)
	a.root.SetErr(out)
}

// Close releases the stores and the log file.
func (a *App) Close() error {
	var err error
	if a.svc != nil {
		err = a.svc.Close()
		a.svc = nil
	}
	a.closeLog()
	return err
}
