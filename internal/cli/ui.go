package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleDiffAdd  = lipgloss.NewStyle().Foreground(colorGreen)
	styleDiffDel  = lipgloss.NewStyle().Foreground(colorRed)
	styleDiffHunk = lipgloss.NewStyle().Foreground(colorCyan)
	styleDiffAddW = styleDiffAdd.Bold(true).Underline(true)
	styleDiffDelW = styleDiffDel.Bold(true).Underline(true)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// =============================================================================
// File Output
// =============================================================================

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printDiff prints a unified diff of a BUILD file with colored hunks.
func printDiff(path, diff string) {
	fmt.Println(StyleTitle.Render(path))
	for _, line := range renderDiff(diff) {
		fmt.Println(line)
	}
}

// renderDiff styles the lines of a unified diff. A run of removed lines
// followed by as many added lines is paired up line by line and the
// changed characters of each pair are emphasized.
func renderDiff(diff string) []string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		line := lines[i]
		switch {
		case i < 2 && (strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ")):
			out = append(out, StyleDim.Render(line))
			i++
		case strings.HasPrefix(line, "@@"):
			out = append(out, styleDiffHunk.Render(line))
			i++
		case strings.HasPrefix(line, "-"):
			del := prefixRun(lines[i:], '-')
			add := prefixRun(lines[i+len(del):], '+')
			if len(del) != len(add) {
				for _, l := range del {
					out = append(out, styleDiffDel.Render(l))
				}
				i += len(del)
				continue
			}
			var dels, adds []string
			for k := range del {
				d, a := highlightPair(del[k][1:], add[k][1:])
				dels, adds = append(dels, d), append(adds, a)
			}
			out = append(append(out, dels...), adds...)
			i += len(del) + len(add)
		case strings.HasPrefix(line, "+"):
			out = append(out, styleDiffAdd.Render(line))
			i++
		default:
			out = append(out, line)
			i++
		}
	}
	return out
}

// prefixRun returns the leading lines that start with c.
func prefixRun(lines []string, c byte) []string {
	n := 0
	for n < len(lines) && len(lines[n]) > 0 && lines[n][0] == c {
		n++
	}
	return lines[:n]
}

// wordDiff computes a character diff of two lines, cleaned up to word-like
// boundaries.
func wordDiff(old, updated string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	return dmp.DiffCleanupSemantic(dmp.DiffMain(old, updated, false))
}

// highlightPair renders a removed and an added line with the characters
// that differ between them emphasized.
func highlightPair(old, updated string) (string, string) {
	var d, a strings.Builder
	d.WriteString(styleDiffDel.Render("-"))
	a.WriteString(styleDiffAdd.Render("+"))
	for _, df := range wordDiff(old, updated) {
		switch df.Type {
		case diffmatchpatch.DiffEqual:
			d.WriteString(styleDiffDel.Render(df.Text))
			a.WriteString(styleDiffAdd.Render(df.Text))
		case diffmatchpatch.DiffDelete:
			d.WriteString(styleDiffDelW.Render(df.Text))
		case diffmatchpatch.DiffInsert:
			a.WriteString(styleDiffAddW.Render(df.Text))
		}
	}
	return d.String(), a.String()
}

// =============================================================================
// Stats Display
// =============================================================================

// printStats prints a run summary on a single dim line.
func printStats(summary string) {
	fmt.Println("  " + StyleDim.Render(summary))
}

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}
