package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/filetype"
	"github.com/fjmerc/filevault/internal/store"
)

// filterFlags are the listing filters shared by list and search.
type filterFlags struct {
	fileType string
	minMB    int64
	maxMB    int64
	from     string
	to       string
	asJSON   bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.fileType, "type", "t", "", "Only files of this MIME type (see 'filevault types')")
	cmd.Flags().Int64Var(&f.minMB, "min-mb", 0, "Minimum size in MB")
	cmd.Flags().Int64Var(&f.maxMB, "max-mb", 0, "Maximum size in MB")
	cmd.Flags().StringVar(&f.from, "from", "", "Uploaded on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Uploaded on or before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the raw listing as JSON")
}

func (f *filterFlags) criteria() (store.FilterCriteria, error) {
	c := store.FilterCriteria{
		FileType:  f.fileType,
		MinSizeMB: f.minMB,
		MaxSizeMB: f.maxMB,
		StartDate: f.from,
		EndDate:   f.to,
	}
	return c, c.Validate()
}

func listCmd() *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		Long: `List uploaded files, newest first, optionally filtered.

Examples:
  filevault list
  filevault list --type image/png --min-mb 1 --max-mb 5
  filevault list --from 2024-01-01 --to 2024-06-30 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}

			listing, err := cache.Listing(cmd.Context(), store.ListKey{Filters: criteria})
			if err != nil {
				return err
			}
			return printListing(listing, criteria, filters.asJSON)
		},
	}

	filters.register(cmd)
	return cmd
}

func searchCmd() *cobra.Command {
	var filters filterFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search files by name",
		Long: `Search uploaded files by name. Filters narrow the results further.

Examples:
  filevault search report
  filevault search "q3 invoice" --type application/pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return &filevault.ValidationError{Field: "query", Message: "cannot be empty"}
			}
			criteria, err := filters.criteria()
			if err != nil {
				return err
			}

			listing, err := cache.Listing(cmd.Context(), store.ListKey{Query: query, Filters: criteria})
			if err != nil {
				return err
			}
			return printListing(listing, criteria, filters.asJSON)
		},
	}

	filters.register(cmd)
	return cmd
}

func printListing(listing *filevault.FileListing, criteria store.FilterCriteria, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}

	if len(listing.Files) == 0 {
		if listing.Query != "" || !criteria.IsZero() {
			fmt.Println("No files match your search.")
		} else {
			fmt.Println("No files uploaded yet.")
		}
		return nil
	}

	if listing.Query != "" {
		fmt.Printf("%d results for %q:\n", listing.Total, listing.Query)
	} else {
		fmt.Printf("Files (showing %d of %d):\n", len(listing.Files), listing.Total)
	}
	fmt.Println(strings.Repeat("═", 90))
	fmt.Printf("%-4s %-36s %-32s %10s  %s\n", "", "ID", "Name", "Size", "Uploaded")
	fmt.Println(strings.Repeat("─", 90))

	for _, f := range listing.Files {
		name := f.OriginalFilename
		if f.IsReference {
			name += " [ref]"
		}
		fmt.Printf("%-4s %-36s %-32s %10s  %s\n",
			filetype.Classify(f.FileType).Icon(),
			f.ID,
			name,
			filetype.FormatBytes(f.Size, 2),
			humanize.Time(f.UploadedAt),
		)
	}
	fmt.Println(strings.Repeat("─", 90))
	return nil
}

func infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <id>",
		Short: "Show details of a file",
		Long: `Show the metadata of a file without downloading it.

Example:
  filevault info 3f2b9c1e-8a4d-4c55-9a8e-2f6d1b7c0e11`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := fetchDetails(cmd, args[0])
			if err != nil {
				return err
			}
			printDetails(rec)
			return nil
		},
	}

	return cmd
}

// fetchDetails loads one file's metadata through the store's detail cache.
func fetchDetails(cmd *cobra.Command, id string) (*filevault.FileRecord, error) {
	cache.Select(id)
	rec, err := cache.Details(cmd.Context())
	if err != nil {
		if filevault.IsNotFound(err) {
			return nil, fmt.Errorf("file %s not found", id)
		}
		return nil, err
	}
	return rec, nil
}

func printDetails(f *filevault.FileRecord) {
	fmt.Println("File Information:")
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("%-12s %s\n", "ID:", f.ID)
	fmt.Printf("%-12s %s\n", "Name:", f.OriginalFilename)
	fmt.Printf("%-12s %s (%s)\n", "Type:", filetype.DescribeMIME(f.FileType), f.FileType)
	fmt.Printf("%-12s %s (%s bytes)\n", "Size:", filetype.FormatBytes(f.Size, 2), humanize.Comma(f.Size))
	fmt.Printf("%-12s %s (%s)\n", "Uploaded:", f.UploadedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(f.UploadedAt))
	fmt.Printf("%-12s %s\n", "Hash:", f.FileHash)
	fmt.Printf("%-12s %s\n", "URL:", f.FileURL)
	if f.IsReference {
		fmt.Printf("%-12s yes\n", "Reference:")
		if f.OriginalFileURL != "" {
			fmt.Printf("%-12s %s\n", "Original:", f.OriginalFileURL)
		}
	}
	fmt.Println(strings.Repeat("─", 50))
}

func deleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a file",
		Long: `Delete a file by its ID. Deleting a file that is already gone is not an error.

Example:
  filevault delete 3f2b9c1e-8a4d-4c55-9a8e-2f6d1b7c0e11
  filevault delete 3f2b9c1e-8a4d-4c55-9a8e-2f6d1b7c0e11 --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			// Get file info first for confirmation
			if !force {
				rec, err := fetchDetails(cmd, id)
				if err != nil {
					return err
				}

				fmt.Printf("Delete file: %s (%s)?\n", rec.OriginalFilename, filetype.FormatBytes(rec.Size, 2))
				fmt.Print("Type 'yes' to confirm: ")

				confirm, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if strings.TrimSpace(confirm) != "yes" {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			if err := cache.Delete(cmd.Context(), id); err != nil {
				return err
			}
			cache.Wait()

			fmt.Println("File deleted successfully.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")

	return cmd
}
