package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/exec"
	"github.com/vulnsight/vulnsight/internal/tools"
)

func newInstallCmd(a *app) *cobra.Command {
	var templates bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install missing scan tools",
		Long: `Install the scan tools that are not on PATH. subfinder and nuclei are built
with 'go install'; nmap and whatweb come from the system package manager
(apt, dnf, pacman, brew, ...), using sudo when available.

Examples:
  vulnsight install
  vulnsight install --templates   # also refresh nuclei templates`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			checker := tools.NewChecker(a.cfg.Tools)
			inst := tools.NewInstaller(checker, tools.DetectPlatform(), exec.System{})

			failed := inst.InstallMissing(ctx)
			if templates {
				if err := inst.UpdateNucleiTemplates(ctx); err != nil {
					failed["nuclei-templates"] = err
				}
			}

			printToolStatus(cmd, checker.CheckAll(), a.cfg)
			if len(failed) == 0 {
				return nil
			}
			red := color.New(color.FgRed)
			w := cmd.ErrOrStderr()
			for _, name := range slices.Sorted(maps.Keys(failed)) {
				red.Fprintf(w, "  ✗ %s: %v\n", name, failed[name])
			}
			return fmt.Errorf("%d install step(s) failed", len(failed))
		},
	}
	cmd.Flags().BoolVar(&templates, "templates", false, "Also update nuclei templates")
	return cmd
}
