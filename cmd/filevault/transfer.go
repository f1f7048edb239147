package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/filetype"
)

func uploadCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload one or more files",
		Long: `Upload files to FileVault.

If a file's content is already stored, the server records a reference to the
existing copy instead of storing it again. Uploading a file that conflicts
with an existing one reports which file it collided with.

Examples:
  filevault upload document.pdf
  filevault upload *.csv --no-progress`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				if err := uploadOne(cmd, path, !noProgress); err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "%s: %s\n", path, uploadErrorMessage(path, err))
				}
			}
			cache.Wait()

			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bar")

	return cmd
}

func uploadOne(cmd *cobra.Command, path string, progress bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	opts := &filevault.UploadOptions{}
	if progress {
		opts.OnProgress = func(p filevault.UploadProgress) {
			fmt.Printf("\r%s %3d%% (%s/%s)",
				progressBar(p.Percentage),
				p.Percentage,
				filetype.FormatBytes(p.BytesUploaded, 1),
				filetype.FormatBytes(p.TotalBytes, 1),
			)
		}
	}

	fmt.Printf("Uploading: %s (%s)\n", path, filetype.FormatBytes(info.Size(), 2))

	result, err := cache.UploadFile(cmd.Context(), path, opts)
	if progress {
		fmt.Println() // Clear progress line
	}
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("─", 50))
	if result.IsReference {
		fmt.Println("Content already stored, created a reference.")
		if o := result.OriginalFile; o != nil {
			fmt.Printf("%-12s %s (%s)\n", "Original:", o.Name, o.ID)
			if !o.UploadedAt.IsZero() {
				fmt.Printf("%-12s %s\n", "Uploaded:", humanize.Time(o.UploadedAt))
			}
		}
	} else {
		fmt.Println("Upload successful!")
	}
	fmt.Printf("%-12s %s\n", "ID:", result.ID)
	if result.Message != "" {
		fmt.Printf("%-12s %s\n", "Message:", result.Message)
	}
	fmt.Println(strings.Repeat("─", 50))
	return nil
}

// uploadErrorMessage explains conflicts in terms of the existing file.
func uploadErrorMessage(path string, err error) string {
	var apiErr *filevault.APIError
	if errors.Is(err, filevault.ErrConflict) && errors.As(err, &apiErr) {
		return apiErr.ConflictMessage(filepath.Base(path))
	}
	return err.Error()
}

func downloadCmd() *cobra.Command {
	var (
		overwrite  bool
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "download <id> [destination]",
		Short: "Download a file",
		Long: `Download a file by its ID.

If no destination is specified, the file is saved to the current directory
with its original filename.

Examples:
  filevault download 3f2b9c1e-8a4d-4c55-9a8e-2f6d1b7c0e11
  filevault download 3f2b9c1e-8a4d-4c55-9a8e-2f6d1b7c0e11 ./copy.pdf --overwrite`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := fetchDetails(cmd, args[0])
			if err != nil {
				return err
			}

			destination := filepath.Base(rec.OriginalFilename)
			if len(args) > 1 {
				destination = args[1]
			}
			fmt.Printf("Downloading %s (%s) to %s\n", rec.OriginalFilename, filetype.FormatBytes(rec.Size, 2), destination)

			opts := &filevault.DownloadOptions{Overwrite: overwrite}
			if !noProgress {
				opts.OnProgress = func(p filevault.DownloadProgress) {
					if p.Percentage >= 0 {
						fmt.Printf("\r%s %3d%% (%s/%s)",
							progressBar(p.Percentage),
							p.Percentage,
							filetype.FormatBytes(p.BytesDownloaded, 1),
							filetype.FormatBytes(p.TotalBytes, 1),
						)
					} else {
						fmt.Printf("\rDownloading... %s", filetype.FormatBytes(p.BytesDownloaded, 1))
					}
				}
			}

			err = client.Download(cmd.Context(), rec, destination, opts)
			if !noProgress {
				fmt.Println() // Clear progress line
			}
			if err != nil {
				return err
			}

			fmt.Println("Download complete!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file at the destination")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bar")

	return cmd
}

func progressBar(percentage int) string {
	width := 30
	filled := percentage * width / 100
	filled = max(0, min(filled, width))
	return fmt.Sprintf("[%s%s]", strings.Repeat("█", filled), strings.Repeat("░", width-filled))
}
