package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/filetype"
	"github.com/fjmerc/filevault/internal/store"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("FileVault"))
	b.WriteString("  ")
	b.WriteString(m.search.View())
	b.WriteString("\n")
	b.WriteString(m.viewFilters())
	b.WriteString("\n\n")

	list := m.viewList()
	if m.selectedID != "" {
		list = lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", m.viewDetails())
	}
	b.WriteString(list)
	b.WriteString("\n\n")

	b.WriteString(m.viewStats())
	b.WriteString("\n")

	if m.message != "" {
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(savedStyle.Render(m.message))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("/ search  ↑/↓ move  enter details  esc close  t type  s size  c clear  d delete  r refresh  q quit"))
	return b.String()
}

func (m Model) viewFilters() string {
	f := m.filters()
	typeLabel := "All Types"
	if f.FileType != "" {
		typeLabel = filetype.DescribeMIME(f.FileType)
	}

	line := labelStyle.Render("Type: ") + filterStyle.Render(typeLabel) +
		labelStyle.Render("   Size: ") + filterStyle.Render(f.SizeLabel())

	pending := m.store.SearchQuery() != m.active.Query || f != m.active.Filters
	if pending {
		line += dimStyle.Render("   (updating...)")
	}
	return line
}

func (m Model) viewList() string {
	var b strings.Builder
	files := m.files()
	st := m.listing

	switch {
	case !st.Cached && st.Err != nil:
		b.WriteString(errorStyle.Render("Error: " + st.Err.Error()))
		return b.String()
	case !st.Cached:
		b.WriteString(dimStyle.Render("Loading files..."))
		return b.String()
	case len(files) == 0 && m.filtered():
		b.WriteString(dimStyle.Render("No files match your search"))
		return b.String()
	case len(files) == 0:
		b.WriteString(dimStyle.Render("No files uploaded yet"))
		return b.String()
	}

	header := fmt.Sprintf("%d of %d files", len(files), st.Data.Total)
	if st.Data.Query != "" {
		header = fmt.Sprintf("%d results for %q", st.Data.Total, st.Data.Query)
	}
	if st.Fetching || st.Stale {
		header += dimStyle.Render(" (refreshing)")
	}
	b.WriteString(labelStyle.Render(header))
	b.WriteString("\n")

	end := min(m.scrollOffset+listVisible, len(files))
	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(m.viewRow(files[i], i == m.cursor))
		b.WriteString("\n")
	}
	if end < len(files) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(files)-end)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewRow(f filevault.FileRecord, selected bool) string {
	icon := iconStyle.Render(filetype.Classify(f.FileType).Icon())
	name := truncate(f.OriginalFilename, 32)
	line := fmt.Sprintf("%-32s %10s  %s", name, filetype.FormatBytes(f.Size, 2), humanize.Time(f.UploadedAt))

	if selected {
		line = selectedStyle.Render(line)
	} else {
		line = rowStyle.Render(line)
	}
	if f.IsReference {
		line += refStyle.Render(" [ref]")
	}
	return icon + line
}

func (m Model) viewDetails() string {
	var b strings.Builder
	st := m.details

	switch {
	case !st.Cached && st.Err != nil:
		if filevault.IsNotFound(st.Err) {
			b.WriteString(errorStyle.Render("File not found"))
		} else {
			b.WriteString(errorStyle.Render("Error: " + st.Err.Error()))
		}
	case !st.Cached:
		b.WriteString(dimStyle.Render("Loading details..."))
	default:
		f := st.Data
		field := func(label, value string) {
			b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
			b.WriteString(valueStyle.Render(value))
			b.WriteString("\n")
		}
		field("Name", f.OriginalFilename)
		field("Type", fmt.Sprintf("%s (%s)", filetype.DescribeMIME(f.FileType), f.FileType))
		field("Size", fmt.Sprintf("%s (%s bytes)", filetype.FormatBytes(f.Size, 2), humanize.Comma(f.Size)))
		field("Uploaded", fmt.Sprintf("%s (%s)", f.UploadedAt.Local().Format("2006-01-02 15:04"), humanize.Time(f.UploadedAt)))
		field("Hash", truncate(f.FileHash, 24))
		if f.IsReference {
			field("Reference", "yes, content shared with another upload")
			if f.OriginalFileURL != "" {
				field("Original", f.OriginalFileURL)
			}
		}
		field("URL", f.FileURL)
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) viewStats() string {
	st := m.stats
	switch {
	case !st.Cached && st.Err != nil:
		return errorStyle.Render("Storage statistics unavailable: " + st.Err.Error())
	case !st.Cached:
		return dimStyle.Render("Loading storage statistics...")
	}

	s := st.Data
	files := fmt.Sprintf("%d files (%d unique, %d duplicates)", s.TotalFiles, s.UniqueFiles, s.DuplicateFiles)
	stored := fmt.Sprintf("%s stored of %s", filetype.FormatBytes(s.ActualSize, 2), filetype.FormatBytes(s.TotalSize, 2))
	saved := savedStyle.Render(fmt.Sprintf("%s saved (%s%%)", filetype.FormatBytes(s.SpaceSaved, 2), filetype.FormatPercent(s.PercentageSaved)))

	return panelStyle.Render(valueStyle.Render(files) + labelStyle.Render("  |  ") + valueStyle.Render(stored) + labelStyle.Render("  |  ") + saved)
}

func (m Model) filtered() bool {
	return m.active.Query != "" || m.active.Filters != (store.FilterCriteria{})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
