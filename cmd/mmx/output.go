package main

import (
	"fmt"
	"os"

	"github.com/kalambet/mmx/internal/backend"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func typeTag(t backend.FileType) string {
	if t == backend.FileTypeAudio {
		return colorize(colorYellow, "[audio]")
	}
	return colorize(colorCyan, "[image]")
}

// renderResults prints the displayed subset in rank order, with per-type
// totals computed over the unfiltered result set.
func renderResults(client *backend.Client, shown []backend.ResultItem, counts map[backend.FileType]int, total int) {
	if total == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Showing %d of %d results (%d image, %d audio)\n\n",
		len(shown), total,
		counts[backend.FileTypeImage], counts[backend.FileTypeAudio])

	for _, r := range shown {
		fmt.Printf("%s %s %s  %s\n",
			colorize(colorBold, fmt.Sprintf("#%-2d", r.Rank)),
			fmt.Sprintf("%5.1f%%", r.SimilarityScore*100),
			typeTag(r.FileType),
			r.Filename,
		)
		fmt.Printf("      %s\n", client.StaticURL(r.SourcePath))
	}

	if len(shown) == 0 {
		fmt.Println("No results match the filter.")
	}
}

// renderRecent prints the capped recent-uploads view plus an overflow line
// when the backend returned more than fits on screen.
func renderRecent(client *backend.Client, records []backend.UploadRecord, total int) {
	if len(records) == 0 {
		return
	}

	fmt.Printf("\n%s\n", colorize(colorBold, "Recent uploads"))
	for _, rec := range records {
		fmt.Printf("  %s %-30s %s  %s\n",
			typeTag(rec.Type),
			rec.Filename,
			rec.AddedAt.Format("2006-01-02 15:04"),
			client.StaticURL(rec.FileURL),
		)
	}
	if total > len(records) {
		fmt.Printf("  Showing %d of %d uploads\n", len(records), total)
	}
}
