package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(GlowCyan)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(InkGray).
			Italic(true)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mint)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(GlowPink)

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Amber)

	KeyStyle = lipgloss.NewStyle().
			Foreground(InkGray)

	ValueStyle = lipgloss.NewStyle().
			Bold(true)
)

// Output streams, swapped in tests
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

const tagline = "Turn images and video into audio-reactive ASCII art."

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Fprintln(stdout, TitleStyle.Render("asciifire ▓▒░"))
	fmt.Fprintf(stdout, "%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(stderr, "%s %s\n", WarningStyle.Render("Warning:"), message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(stdout, "%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintInfo prints a key/value line
func PrintInfo(key, value string) {
	fmt.Fprintf(stdout, "%s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}
