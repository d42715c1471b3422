package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fenilsonani/sortdir/internal/config"
	"github.com/fenilsonani/sortdir/internal/daemon"
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

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("sortdir")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "sortdird",
		Short: "Organize a directory on a fixed interval",
		Long: `sortdird runs organization passes over the configured schedule
directory until it receives SIGINT or SIGTERM. SIGHUP runs a pass
immediately. Only one instance runs per PID file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			if dir := v.GetString("directory"); dir != "" {
				cfg.Schedule.Directory = dir
			}
			if every := v.GetInt("every"); every > 0 {
				cfg.Schedule.IntervalMinutes = every
			}

			if v.GetBool("status") {
				return printStatus(cmd.OutOrStdout(), cfg)
			}
			if v.GetBool("test-config") {
				return testConfig(cmd.OutOrStdout(), cfg)
			}

			logFile, err := cfg.ResolveLogFile()
			if err != nil {
				return err
			}
			opts := logger.Options{File: logFile, Level: cfg.Log.Level}
			if v.GetBool("foreground") {
				opts.Console = os.Stderr
			}
			log, err := logger.New(opts)
			if err != nil {
				return err
			}
			defer log.Close()

			engine, err := organizer.New(organizer.Options{
				Config:   cfg,
				Logger:   log,
				Progress: progress.NewProgressReporter(),
			})
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, engine, log)
			if err != nil {
				if errors.Is(err, daemon.ErrNoDirectory) {
					return fmt.Errorf("%w: set schedule.directory in %s or pass --directory", err, configPathOrDefault(v))
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Starting sortdird for %s every %d minutes (PID file %s)\n",
				cfg.Schedule.Directory, cfg.Schedule.IntervalMinutes, d.PidFile())
			return d.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "config file path (env SORTDIR_CONFIG)")
	flags.String("directory", "", "directory to organize (overrides schedule.directory)")
	flags.Int("every", 0, "minutes between passes (overrides schedule.interval_minutes)")
	flags.Bool("foreground", false, "also log to stderr")
	flags.Bool("test-config", false, "validate the configuration and exit")
	flags.Bool("status", false, "report whether a daemon is running and exit")
	for _, name := range []string{"config", "directory", "every", "foreground", "test-config", "status"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	return cmd
}

func configPathOrDefault(v *viper.Viper) string {
	if p := v.GetString("config"); p != "" {
		return p
	}
	p, err := config.GetConfigPath()
	if err != nil {
		return "the config file"
	}
	return p
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	if p := v.GetString("config"); p != "" {
		return config.Load(p)
	}
	return config.Load(configPathOrDefault(v))
}

func testConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "Configuration is valid")
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(cfg.Categories.Names(), ", "))
	if cfg.Schedule.Directory == "" {
		fmt.Fprintln(w, "Schedule: no directory configured")
		return daemon.ErrNoDirectory
	}
	fmt.Fprintf(w, "Schedule: %s every %d minutes\n", cfg.Schedule.Directory, cfg.Schedule.IntervalMinutes)
	return nil
}

func printStatus(w io.Writer, cfg *config.Config) error {
	pidFile, err := cfg.ResolvePidFile()
	if err != nil {
		return err
	}
	if pid, ok := daemon.ReadPid(pidFile); ok {
		fmt.Fprintf(w, "sortdird is running (PID %d)\n", pid)
		return nil
	}
	fmt.Fprintln(w, "sortdird is not running")
	return nil
}
