package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fenilsonani/sortdir/internal/config"
	"github.com/fenilsonani/sortdir/internal/logger"
	"github.com/fenilsonani/sortdir/internal/organizer"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every subcommand shares. Settings are read through viper
// so SORTDIR_CONFIG, SORTDIR_LOG_LEVEL and SORTDIR_VERBOSE work like flags.
type app struct {
	v   *viper.Viper
	out io.Writer
	in  io.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), out: os.Stdout, in: os.Stdin}
	a.v.SetEnvPrefix("sortdir")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "sortdir",
		Short: "Sort a directory into category folders",
		Long: `sortdir moves the files at the top level of a directory into folders
named after their type (Images, Documents/PDFs, Music, ...), sets content
duplicates aside, and can undo the last pass.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.out = cmd.OutOrStdout()
			a.in = cmd.InOrStdin()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file path (env SORTDIR_CONFIG)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("verbose", false, "also write the diagnostics log to stderr")
	for _, name := range []string{"config", "log-level", "verbose"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		a.organizeCmd(),
		a.planCmd(),
		a.duplicatesCmd(),
		a.undoCmd(),
		a.scheduleCmd(),
		a.backupCmd(),
		a.configCmd(),
		a.logsCmd(),
		a.versionCmd(),
	)
	return rootCmd
}

// configPath returns the explicit config path, or the per-user default
func (a *app) configPath() (string, error) {
	if p := a.v.GetString("config"); p != "" {
		return p, nil
	}
	return config.GetConfigPath()
}

func (a *app) loadConfig() (*config.Config, error) {
	path, err := a.configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level := a.v.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func (a *app) newLogger(cfg *config.Config) (*logger.Logger, error) {
	file, err := cfg.ResolveLogFile()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log file: %w", err)
	}
	opts := logger.Options{File: file, Level: cfg.Log.Level}
	if a.v.GetBool("verbose") {
		opts.Console = os.Stderr
	}
	return logger.New(opts)
}

// session is one configured engine plus the logger it writes to
type session struct {
	cfg    *config.Config
	log    *logger.Logger
	engine *organizer.Engine
}

func (a *app) openSession(mutate ...func(*config.Config)) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, m := range mutate {
		m(cfg)
	}

	log, err := a.newLogger(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := organizer.New(organizer.Options{
		Config:   cfg,
		Logger:   log,
		Progress: progress.NewProgressReporter(),
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	return &session{cfg: cfg, log: log, engine: engine}, nil
}

func (s *session) Close() {
	s.log.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// confirm asks a yes/no question on the command's streams
func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.out, "%s (y/N): ", question)
	var response string
	fmt.Fscanln(a.in, &response)
	return response == "y" || response == "Y"
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
