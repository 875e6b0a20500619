package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(GlowCyan).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(GlowBlue).
			Italic(true)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(GlowViolet).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(GlowCyan).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(GlowPink).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(InkGray).
				Italic(true)
)

// StyledHelpPrinter renders kong help with lipgloss. It describes the
// selected subcommand, or lists the commands at the top level.
func StyledHelpPrinter(options kong.HelpOptions) kong.HelpPrinter {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		node := ctx.Selected()
		if node == nil {
			node = ctx.Model.Node
		}

		var sb strings.Builder
		sb.WriteString(helpTitleStyle.Render("asciifire ▓▒░"))
		sb.WriteString("\n")
		desc := node.Help
		if node == ctx.Model.Node || desc == "" {
			desc = tagline
		}
		sb.WriteString(helpDescStyle.Render(desc))
		sb.WriteString("\n")

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(usage(ctx.Model.Name, node))
		sb.WriteString("\n")

		if cmds := commands(node); len(cmds) > 0 {
			sb.WriteString(helpSectionStyle.Render("Commands:"))
			sb.WriteString("\n")
			for _, c := range cmds {
				fmt.Fprintf(&sb, "  %s  %s\n", helpArgStyle.Render(fmt.Sprintf("%-10s", c.name)), c.help)
			}
		}

		if args := getArguments(node); len(args) > 0 {
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		if flags := getFlags(node); len(flags) > 0 {
			sb.WriteString(helpSectionStyle.Render("Flags:"))
			sb.WriteString("\n")
			for _, flag := range flags {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Render(flag.flags))
				if flag.help != "" {
					sb.WriteString("  ")
					sb.WriteString(flag.help)
				}
				if flag.defaultVal != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("(default: " + flag.defaultVal + ")"))
				}
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

func usage(app string, node *kong.Node) string {
	if node.Type != kong.CommandNode {
		return app + " <command> [flags]"
	}
	parts := []string{app, node.Path()}
	for _, p := range node.Positional {
		parts = append(parts, p.Summary())
	}
	return strings.Join(parts, " ") + " [flags]"
}

type command struct {
	name string
	help string
}

func commands(node *kong.Node) []command {
	var out []command
	for _, c := range node.Children {
		if c.Hidden {
			continue
		}
		out = append(out, command{name: c.Name, help: c.Help})
	}
	return out
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
}

func getArguments(node *kong.Node) []argument {
	var args []argument
	for _, arg := range node.Positional {
		args = append(args, argument{name: arg.Summary(), help: arg.Help})
	}
	return args
}

// getFlags lists the node's flags followed by those inherited from parents.
func getFlags(node *kong.Node) []flag {
	flags := []flag{{flags: "-h, --help", help: "Show context-sensitive help."}}

	for _, group := range node.AllFlags(true) {
		for _, f := range group {
			if f.Name == "help" {
				continue
			}

			var flagStr string
			if f.Short != 0 {
				flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
			} else {
				flagStr = fmt.Sprintf("--%s", f.Name)
			}
			if !f.IsBool() && f.PlaceHolder != "" {
				flagStr += "=" + strings.ToUpper(f.PlaceHolder)
			}

			defaultVal := ""
			if f.HasDefault && !f.IsBool() && f.Default != "" {
				defaultVal = f.Default
			}

			flags = append(flags, flag{flags: flagStr, help: f.Help, defaultVal: defaultVal})
		}
	}
	return flags
}
