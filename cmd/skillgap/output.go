package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/kalambet/skillgap/internal/gap"
)

// ANSI styles.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// colorEnabled reports whether output should carry ANSI styles: not when
// asked otherwise and not when stdout is piped.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorize(style, text string) string {
	if noColor {
		return text
	}
	return style + text + ansiReset
}

// notice writes one styled status line to stderr.
func notice(style, mark, format string, args []any) {
	fmt.Fprintln(os.Stderr, colorize(style, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { notice(ansiGreen, "✓", format, args) }
func printError(format string, args ...any)   { notice(ansiRed, "✗", format, args) }
func printWarning(format string, args ...any) { notice(ansiYellow, "!", format, args) }
func printStep(format string, args ...any)    { notice(ansiCyan, "→", format, args) }

// printStatus writes an indented "label: value" line.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// writeReport renders a gap report for the terminal.
func writeReport(w io.Writer, r gap.Report) {
	fmt.Fprintf(w, "%s %s -> %s\n", colorize(ansiBold, "Skill gap:"), r.UserName, r.TargetRole)
	fmt.Fprintf(w, "%s %.1f/100\n", colorize(ansiBold, "Score:"), r.OverallScore)

	writeItems(w, "Met", ansiGreen, r.SkillsMet)
	writeItems(w, "Missing", ansiRed, r.SkillsMissing)
	writeItems(w, "Weak", ansiYellow, r.SkillsWeak)

	if len(r.UpskillingPath) > 0 {
		fmt.Fprintf(w, "\n%s\n", colorize(ansiBold, "Upskilling path"))
		for i, step := range r.UpskillingPath {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
	if s := strings.TrimSpace(r.Narrative); s != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", colorize(ansiBold, "Summary"), s)
	}
}

func writeItems(w io.Writer, title, color string, items []gap.Item) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d)\n", colorize(color, title), len(items))
	for _, it := range items {
		line := "  - " + it.SkillName
		if it.CurrentProficiency.Known() || it.RequiredProficiency.Known() {
			line += fmt.Sprintf(" [%s -> %s]", levelLabel(it.CurrentProficiency), levelLabel(it.RequiredProficiency))
		}
		if it.Status != gap.StatusMet {
			line += fmt.Sprintf(" (%s)", it.Severity)
		}
		fmt.Fprintln(w, line)
		if it.Recommendation != "" && it.Status != gap.StatusMet {
			fmt.Fprintf(w, "      %s\n", it.Recommendation)
		}
	}
}

func levelLabel(p gap.Proficiency) string {
	if !p.Known() {
		return "?"
	}
	return p.String()
}
