package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/config"
	"github.com/vulnsight/vulnsight/internal/debug"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/storage"
	"github.com/vulnsight/vulnsight/internal/version"
)

// app carries the flags and loaded configuration shared by every command.
type app struct {
	configPath string
	quiet      bool
	debug      bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}
	scan := &scanFlags{}

	rootCmd := &cobra.Command{
		Use:   "vulnsight",
		Short: "AI-assisted reconnaissance and vulnerability scanner",
		Long: `VulnSight - AI-assisted reconnaissance and vulnerability scanner.

Runs subfinder, nmap, whatweb and nuclei against a target, asks Gemini for
likely CVEs in the detected stack, saves the result and renders reports.

Examples:
  vulnsight -t example.com
  vulnsight -t example.com -j out/example.json --html out/report.html --pdf out/report.pdf
  vulnsight history
  vulnsight report a1b2c3d4 --pdf report.pdf`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, scan)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default: ~/.vulnsight/config.yaml)")
	pf.BoolVar(&a.debug, "debug", false, "Show detailed timing logs for each tool execution")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Only print errors and the final result")

	f := rootCmd.Flags()
	f.StringVarP(&scan.target, "target", "t", "", "Target domain to scan (e.g. example.com)")
	f.StringVarP(&scan.outputJSON, "output-json", "j", "", "Save the scan result as JSON to this file")
	f.StringVar(&scan.html, "html", "", "Generate an HTML report at this path")
	f.StringVar(&scan.pdf, "pdf", "", "Generate a PDF report at this path")

	rootCmd.AddCommand(
		newHistoryCmd(a),
		newShowCmd(a),
		newReportCmd(a),
		newCheckCmd(a),
		newInstallCmd(a),
		newConfigCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line with ctx, which is cancelled on shutdown
// signals.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// setup loads the config file and applies the global flags.
func (a *app) setup(cmd *cobra.Command) error {
	status.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	status.SetQuiet(a.quiet)

	path := a.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrNotFound):
		// only an explicitly requested file is worth a complaint
		if a.configPath != "" {
			status.Errorf("Configuration file '%s' not found, using defaults.", path)
		}
	case err != nil:
		status.Errorf("%v; using defaults.", err)
	}
	a.cfg = cfg
	a.cfg.Debug = a.debug
	if a.debug {
		debug.Enable()
		debug.SetOutput(cmd.ErrOrStderr())
	}
	return nil
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open scan database: %w", err)
	}
	return store, nil
}

func (a *app) printBanner(cmd *cobra.Command) {
	if a.quiet {
		return
	}
	w := cmd.OutOrStdout()
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	red.Fprint(w, `
 _    __      __      _____ _       __    __
| |  / /_  __/ /___  / ___/(_)___ _/ /_  / /_
| | / / / / / / __ \ \__ \/ / __ '/ __ \/ __/
| |/ / /_/ / / / / /___/ / / /_/ / / / / /_
|___/\__,_/_/_/ /_//____/_/\__, /_/ /_/\__/
                          /____/
`)
	fmt.Fprintln(w)
	cyan.Fprint(w, "  AI-Assisted Reconnaissance Toolkit")
	gray.Fprintf(w, "  v%s\n\n", version.Version)
}
