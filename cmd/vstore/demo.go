package main

import (
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vstore/internal/tui"
)

func (c *cli) demoCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive the demo stores from a terminal UI",
		Long: `Open a terminal UI over the counter, theme and cart stores.

The theme is persisted with the configured backend, so it survives
restarts and, with --watch, follows changes made by a running server
that shares the same storage.

Examples:
  vstore demo
  vstore demo --backend=file --watch
  vstore demo --log-file=vstore.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}

			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := tea.LogToFile(logFile, "vstore")
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				w = f
			}
			logger := newLogger(cfg.Log, w)
			slog.SetDefault(logger)

			inst, err := openInstance(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := inst.Close(); err != nil {
					logger.Error("shutdown", "error", err)
				}
			}()

			m := tui.New(tui.Options{App: inst.app})
			defer m.Close()

			p := tea.NewProgram(m,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithOutput(c.stdout),
			)
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file (default: discard)")

	return cmd
}
