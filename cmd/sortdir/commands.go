package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fenilsonani/sortdir/internal/config"
	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/logger"
	"github.com/fenilsonani/sortdir/internal/organizer"
	"github.com/fenilsonani/sortdir/internal/reporter"
	"github.com/fenilsonani/sortdir/internal/ui"
	"github.com/fenilsonani/sortdir/pkg/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) organizeCmd() *cobra.Command {
	var (
		dryRun     bool
		tui        bool
		outputFmt  string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "organize DIR",
		Short: "Move the files of DIR into category folders",
		Long: `Scans the top level of DIR, sets content duplicates aside in the
duplicates folder and moves every other file into its category folder.
The moves are recorded so the pass can be reverted with "sortdir undo".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := reporter.ParseFormat(outputFmt)
			if err != nil {
				return err
			}

			s, err := a.openSession(func(cfg *config.Config) {
				if cmd.Flags().Changed("dry-run") {
					cfg.Mover.DryRun = dryRun
				}
			})
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			var summary *organizer.RunSummary
			if tui {
				summary, err = ui.RunOrganize(ctx, s.engine, args[0])
			} else {
				pr := s.engine.Progress()
				updates := pr.Subscribe()
				live := ui.NewTerminalProgress(os.Stderr)
				done := live.Follow(updates)

				summary, err = s.engine.Organize(ctx, args[0])

				pr.Unsubscribe(updates)
				<-done
				live.Finish()
			}

			if summary != nil {
				if outputFile != "" {
					if saveErr := reporter.SaveToFile(summary, outputFile, format); saveErr != nil {
						return fmt.Errorf("failed to save report: %w", saveErr)
					}
					fmt.Fprintf(a.out, "Report saved to: %s\n", outputFile)
				} else if repErr := reporter.New(a.out, format).Report(summary); repErr != nil {
					return fmt.Errorf("failed to generate report: %w", repErr)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show where files would go without moving them")
	cmd.Flags().BoolVar(&tui, "tui", false, "show live progress in a full-screen view")
	cmd.Flags().StringVar(&outputFmt, "output", "summary", "output format (summary, table, json, yaml)")
	cmd.Flags().StringVar(&outputFile, "file", "", "save report to file")
	return cmd
}

func (a *app) planCmd() *cobra.Command {
	var outputFmt string

	cmd := &cobra.Command{
		Use:   "plan DIR",
		Short: "Show where each file of DIR would be moved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := reporter.ParseFormat(outputFmt)
			if err != nil {
				return err
			}

			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			p, err := s.engine.Preview(ctx, args[0])
			if err != nil {
				return err
			}
			return reporter.New(a.out, format).ReportPlan(p)
		},
	}

	cmd.Flags().StringVar(&outputFmt, "output", "table", "output format (summary, table, json, yaml)")
	return cmd
}

func (a *app) duplicatesCmd() *cobra.Command {
	var (
		del bool
		yes bool
	)

	cmd := &cobra.Command{
		Use:   "duplicates DIR",
		Short: "List files of DIR with identical content",
		Long: `Lists groups of files at the top level of DIR whose content is identical.
With --delete every file but the first of each group is removed; deleted
files are not recorded for undo.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			groups, err := s.engine.FindDuplicates(ctx, args[0])
			if err != nil {
				return err
			}

			rptr := reporter.New(a.out, reporter.FormatSummary)
			if err := rptr.ReportDuplicates(groups); err != nil {
				return err
			}
			if !del || len(groups) == 0 {
				return nil
			}

			if !yes && !a.confirm("\nDelete the extra copies?") {
				fmt.Fprintln(a.out, "Deletion cancelled")
				return nil
			}

			res, err := s.engine.DeleteDuplicates(ctx, groups)
			if res != nil {
				fmt.Fprintf(a.out, "\nDeleted %d files (%s)\n", res.Deleted, utils.FormatBytes(res.Bytes))
				if len(res.Errors) > 0 {
					fmt.Fprintf(a.out, "\n%s", fileops.FormatErrorSummary(res.Errors))
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&del, "delete", false, "delete every copy except the first of each group")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Move the files of the last pass back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			res, err := s.engine.UndoLast(ctx)
			if res != nil {
				if repErr := reporter.New(a.out, reporter.FormatSummary).ReportUndo(res); repErr != nil {
					return repErr
				}
			}
			if isCancelled(err) {
				fmt.Fprintln(a.out, "Undo interrupted; run it again to restore the remaining files.")
			}
			return err
		},
	}
}

func (a *app) scheduleCmd() *cobra.Command {
	var every int

	cmd := &cobra.Command{
		Use:   "schedule DIR",
		Short: "Organize DIR every few minutes until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if every <= 0 {
				every = s.cfg.Schedule.IntervalMinutes
			}
			if err := s.engine.StartScheduler(args[0], every); err != nil {
				return err
			}

			status := s.engine.SchedulerStatus()
			fmt.Fprintf(a.out, "Organizing %s every %s (next pass %s). Press ctrl+c to stop.\n",
				status.Directory, status.Interval, status.NextRun.Format(time.Kitchen))

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			<-ctx.Done()

			fmt.Fprintln(a.out, "Stopping scheduler...")
			select {
			case <-s.engine.StopScheduler().Done():
			case <-time.After(30 * time.Second):
				return errors.New("timed out waiting for the running pass")
			}

			if last := s.engine.SchedulerStatus(); last.LastError != nil {
				fmt.Fprintf(a.out, "Last pass failed: %v\n", last.LastError)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&every, "every", 0, "minutes between passes (default from config)")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				_, err = a.out.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.configPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, path)
				if _, err := os.Stat(path); os.IsNotExist(err) {
					fmt.Fprintln(a.out, "Config file does not exist. Using default configuration.")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the default configuration if none exists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.configPath()
				if err != nil {
					return err
				}
				created, err := config.EnsureConfigAt(path)
				if err != nil {
					return err
				}
				if !created {
					fmt.Fprintf(a.out, "Config file already exists: %s\n", path)
					return nil
				}
				fmt.Fprintf(a.out, "Wrote default configuration to %s\n", path)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup DIR",
		Short: "Copy the files of DIR into DIR/" + organizer.BackupFolder,
		Long: `Copies every file at the top level of DIR into the ` + organizer.BackupFolder + ` folder
inside DIR. Earlier copies are kept; a name already used there gets a
numbered suffix. Organize passes leave the backup folder alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			res, err := s.engine.Backup(ctx, args[0])
			if res != nil {
				fmt.Fprintf(a.out, "Backed up %d files (%s) to %s\n",
					res.Copied, utils.FormatBytes(res.Bytes), res.Directory)
				if n := len(res.Renamed); n > 0 {
					fmt.Fprintf(a.out, "%d copies were saved under a numbered name\n", n)
				}
				if len(res.Errors) > 0 {
					fmt.Fprintf(a.out, "\n%s", fileops.FormatErrorSummary(res.Errors))
				}
			}
			if isCancelled(err) {
				fmt.Fprintln(a.out, "Backup interrupted; the folder holds the files copied so far.")
			}
			return err
		},
	}
}

func (a *app) logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect or clear the diagnostics log",
	}

	logFile := func() (string, error) {
		cfg, err := a.loadConfig()
		if err != nil {
			return "", fmt.Errorf("failed to load config: %w", err)
		}
		return cfg.ResolveLogFile()
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the log file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := logFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the log file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := logFile()
				if err != nil {
					return err
				}
				if err := logger.Clear(path); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Cleared %s\n", path)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "sortdir %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		},
	}
}
