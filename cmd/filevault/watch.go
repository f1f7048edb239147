package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fjmerc/filevault/internal/tui"
	"github.com/fjmerc/filevault/internal/watch"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Upload files as they appear in a directory",
		Long: `Watch a directory and upload every file created or modified in it once
it has been quiet for FILEVAULT_WATCH_QUIET_MS. Hidden and temporary files
are skipped. Runs until interrupted.

Example:
  filevault watch ~/Scans`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			w, err := watch.New(dir, cache, watch.Options{
				QuietDelay: cfg.WatchQuietDelay,
				Logger:     slog.Default(),
				OnResult: func(r watch.Result) {
					fmt.Printf("%-9s %s", r.Status, filepath.Base(r.Path))
					if r.Message != "" {
						fmt.Printf(": %s", r.Message)
					}
					fmt.Println()
				},
			})
			if err != nil {
				return err
			}

			fmt.Printf("Watching %s (Ctrl+C to stop)\n", dir)
			return w.Run(cmd.Context())
		},
	}

	return cmd
}

func uiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Browse files interactively",
		Long: `Open the interactive file browser.

Keys:
  /        search (results update as you type)
  ↑/↓      move             enter  show details     esc  close details
  t        cycle type       s      cycle size       c    clear filters
  d        delete           r      refresh          q    quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), cache)
		},
	}

	return cmd
}
