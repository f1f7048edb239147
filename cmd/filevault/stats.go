package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/filetype"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage and deduplication statistics",
		Long: `Show how many files are stored, how many are duplicates and how much
space deduplication saves.

Example:
  filevault stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := cache.StorageStats(cmd.Context())
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		},
	}

	return cmd
}

func printStats(s *filevault.StorageStats) {
	fmt.Println("Storage Statistics")
	fmt.Println(strings.Repeat("─", 40))
	fmt.Printf("%-18s %s\n", "Total files:", humanize.Comma(int64(s.TotalFiles)))
	fmt.Printf("%-18s %s\n", "Unique files:", humanize.Comma(int64(s.UniqueFiles)))
	fmt.Printf("%-18s %s\n", "Duplicates:", humanize.Comma(int64(s.DuplicateFiles)))
	fmt.Printf("%-18s %s\n", "Logical size:", filetype.FormatBytes(s.TotalSize, 2))
	fmt.Printf("%-18s %s\n", "Stored size:", filetype.FormatBytes(s.ActualSize, 2))
	fmt.Printf("%-18s %s (%s%%)\n", "Space saved:", filetype.FormatBytes(s.SpaceSaved, 2), filetype.FormatPercent(s.PercentageSaved))
	fmt.Println(strings.Repeat("─", 40))
	if !s.Consistent() {
		fmt.Println("Warning: the server reported inconsistent totals.")
	}
}
