// Package ui renders dashboard output: the per-folder breakdown table,
// filter badges, and status notices.
package ui

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/grahamwalsh/syncdeck/internal/browse"
	"github.com/grahamwalsh/syncdeck/internal/category"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styles — initialized in Init().
var (
	headerStyle  lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	badgeStyle   lipgloss.Style
)

func init() {
	Init(false)
}

// Init sets up color detection and lipgloss styles. Call once at CLI
// startup; pass true to force plain output.
func Init(noColorFlag bool) {
	noColor := noColorFlag || os.Getenv("NO_COLOR") != ""

	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	badgeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
}

// Width returns the terminal width, or a default when stdout is not a
// terminal.
func Width() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// categoryLabels gives each category a human-readable display name.
var categoryLabels = map[category.Category]string{
	category.Downloading: "Downloading",
	category.Queued:      "Queued",
	category.RemoteOnly:  "Remote only",
	category.Modified:    "Modified",
	category.LocalOnly:   "Local only",
}

// BreakdownTable renders a folder's out-of-sync counts as an aligned
// table. All-zero counts collapse to a single "all synced" line.
func BreakdownTable(folderID string, counts map[category.Category]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return fmt.Sprintf("%s %s\n",
			successStyle.Render("✓"),
			fmt.Sprintf("%s: everything in sync", folderID))
	}

	cats := make([]category.Category, 0, len(counts))
	for cat := range counts {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	rule := Width() - len(folderID) - 4
	if rule < 2 {
		rule = 2
	}
	if rule > 40 {
		rule = 40
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("── %s %s", folderID, strings.Repeat("─", rule))))
	b.WriteString("\n")

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, cat := range cats {
		label, ok := categoryLabels[cat]
		if !ok {
			label = cat.String()
		}
		n := counts[cat]
		count := fmt.Sprintf("%d", n)
		if n > 0 {
			count = boldStyle.Render(count)
		} else {
			count = dimStyle.Render(count)
		}
		fmt.Fprintf(w, "  %s\t%s\n", label, count)
	}
	w.Flush()

	fmt.Fprintf(&b, "  %s\t%s\n", dimStyle.Render("total"), boldStyle.Render(fmt.Sprintf("%d", total)))
	return b.String()
}

// FilterBadge renders the active filter mode for a status line.
// Inactive mode renders as an empty string.
func FilterBadge(state browse.State) string {
	switch state.Mode {
	case browse.ModeSearch:
		return badgeStyle.Render(fmt.Sprintf("[search: %s]", state.Query))
	case browse.ModeOutOfSync:
		return badgeStyle.Render("[out-of-sync]")
	default:
		return ""
	}
}

// EntryLine renders a single browse entry for a listing.
func EntryLine(e browse.Entry, selected bool) string {
	name := e.Name
	if e.IsDir {
		name += "/"
	}
	if selected {
		return fmt.Sprintf("%s %s", badgeStyle.Render("▸"), boldStyle.Render(name))
	}
	return "  " + name
}

// Notice prints a transient status notice, such as a filter-cleared
// message.
func Notice(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", dimStyle.Render("·"), msg)
}

// Warning prints a styled warning message.
func Warning(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warningStyle.Render("⚠"), msg)
}

// Error prints a styled error message.
func Error(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("✗"), msg)
}

// Success prints a green check with a message.
func Success(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", successStyle.Render("✓"), msg)
}
