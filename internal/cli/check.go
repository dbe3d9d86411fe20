package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/tools"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check installed tools",
		Long: `Check which scanning tools are installed and whether their versions are
recent enough. Missing tools do not stop a scan; their stage is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printToolStatus(cmd, tools.NewChecker(a.cfg.Tools).CheckAll(), a.cfg)
			return nil
		},
	}
}

func printToolStatus(cmd *cobra.Command, all []tools.ToolStatus, cfg *config.Config) {
	w := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan, color.Bold)

	cyan.Fprintln(w, "\n[+] VulnSight Tool Status")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scan Tools:")
	fmt.Fprintln(w, "─────────────────────────────────────────────────────")

	installed := 0
	inventory := tools.ScanTools()
	for i, t := range all {
		fmt.Fprintf(w, "  %-12s ", t.Name)
		switch {
		case !t.Installed:
			red.Fprintln(w, "✗ not found")
			fmt.Fprintf(w, "               install: %s\n", inventory[i].InstallHint())
			continue
		case t.Outdated:
			yellow.Fprintf(w, "! outdated (%s, want %s)\n", t.Version, t.Want)
		default:
			green.Fprint(w, "✓ installed")
			if t.Version != "" {
				fmt.Fprintf(w, " (%s)", t.Version)
			}
			fmt.Fprintln(w)
		}
		installed++
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Installed: %d/%d\n", installed, len(all))
	if cfg.AI.APIKey == "" {
		yellow.Fprintln(w, "Gemini API key: not configured (AI suggestions will be skipped)")
	} else {
		green.Fprintf(w, "Gemini API key: %s\n", config.MaskKey(cfg.AI.APIKey))
	}
}
