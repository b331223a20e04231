package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"otogi-tell/internal/driver"
	"otogi-tell/modules/tell/reminder"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "bot",
		Short: "Run the otogi tell bot",
		Long: `Runs the otogi kernel with the tell and help modules.

Configuration is read from --config, $OTOGI_CONFIG_FILE, or config/bot.json.
Top-level keys can be overridden with OTOGI_ environment variables, for
example OTOGI_LOG_LEVEL=debug.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := driver.NewBuiltinRegistry()
			if err != nil {
				return fmt.Errorf("new builtin driver registry: %w", err)
			}
			cfg, err := loadConfig(configFile, registry)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runBot(ctx, cfg, registry, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to the bot config file")
	root.AddCommand(newRemindersCommand(&configFile))

	return root
}

func newRemindersCommand(configFile *string) *cobra.Command {
	var (
		storePath string
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List pending reminders in the tell store",
		Long: `Prints every pending reminder grouped by recipient key, in the
order they will be delivered. The store file is opened read-only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := storePath
			if path == "" {
				registry, err := driver.NewBuiltinRegistry()
				if err != nil {
					return fmt.Errorf("new builtin driver registry: %w", err)
				}
				cfg, err := loadConfig(*configFile, registry)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				path = cfg.tell.StorePath
			}

			fs := afero.NewReadOnlyFs(afero.NewOsFs())
			return listReminders(cmd.Context(), cmd.OutOrStdout(), fs, path, noColor)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "store file to read instead of the configured one")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func listReminders(ctx context.Context, out io.Writer, fs afero.Fs, path string, noColor bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}

	index, err := reminder.NewStore(fs, path, nil).Load()
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	if index.Len() == 0 {
		_, err := fmt.Fprintf(out, "no pending reminders in %s\n", path)
		return err
	}

	heading := color.New(color.FgCyan, color.Bold)
	if noColor {
		heading.DisableColor()
	}
	for _, key := range index.Keys() {
		items := index.Reminders(key)
		label := key
		if reminder.IsWildcardKey(key) {
			label += " (wildcard)"
		}
		if _, err := heading.Fprintf(out, "%s: %d pending\n", label, len(items)); err != nil {
			return fmt.Errorf("list reminders: %w", err)
		}
		for _, item := range items {
			if _, err := fmt.Fprintf(out, "  %s <%s> %s %s\n", item.Timestamp, item.Sender, item.Verb, item.Message); err != nil {
				return fmt.Errorf("list reminders: %w", err)
			}
		}
	}

	return nil
}
