package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/fjmerc/filevault/internal/filetype"
)

func typesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types [file-or-mime]...",
		Short: "List known file types or classify files",
		Long: `Without arguments, list the file types accepted by --type.

With arguments, classify each one: a local file is sniffed by content, an
argument containing '/' is treated as a MIME type, and anything else as a
file extension.

Examples:
  filevault types
  filevault types ./report.pdf text/x-go .xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				printKnownTypes()
				return nil
			}
			for _, arg := range args {
				mime, err := resolveMIME(arg)
				if err != nil {
					return err
				}
				cat := filetype.Classify(mime)
				fmt.Printf("%-4s %-30s %-60s %s\n", cat.Icon(), arg, mime, filetype.DescribeMIME(mime))
			}
			return nil
		},
	}

	return cmd
}

func printKnownTypes() {
	fmt.Printf("%-4s %-20s %-72s %s\n", "", "Label", "MIME type", "Extensions")
	fmt.Println(strings.Repeat("─", 110))
	for _, t := range filetype.KnownTypes {
		fmt.Printf("%-4s %-20s %-72s %s\n",
			filetype.Classify(t.MIMEType).Icon(),
			t.Label,
			t.MIMEType,
			strings.Join(t.Extensions, " "),
		)
	}
}

// resolveMIME maps a file, MIME type or extension to a MIME type.
func resolveMIME(arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		if t, ok := filetype.LookupExtension(filepath.Ext(arg)); ok {
			return t.MIMEType, nil
		}
		m, err := mimetype.DetectFile(arg)
		if err != nil {
			return "", fmt.Errorf("detecting type of %s: %w", arg, err)
		}
		return m.String(), nil
	}
	if strings.Contains(arg, "/") {
		return arg, nil
	}
	if t, ok := filetype.LookupExtension(arg); ok {
		return t.MIMEType, nil
	}
	return "application/octet-stream", nil
}
