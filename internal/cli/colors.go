package cli

import "github.com/charmbracelet/lipgloss"

// Glow colour palette, shared by the CLI output and help
var (
	GlowCyan   = lipgloss.Color("#00D4FF")
	GlowBlue   = lipgloss.Color("#2979FF")
	GlowViolet = lipgloss.Color("#7C4DFF")
	GlowPink   = lipgloss.Color("#FF4FD8")

	InkGray = lipgloss.Color("#8A8FA3") // subtle text
	Mint    = lipgloss.Color("#3DDC97")
	Amber   = lipgloss.Color("#FFC24B")
)
