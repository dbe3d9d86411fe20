package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/debug"
	"github.com/vulnsight/vulnsight/internal/output"
	"github.com/vulnsight/vulnsight/internal/report"
	"github.com/vulnsight/vulnsight/internal/runner"
	"github.com/vulnsight/vulnsight/internal/status"
	"github.com/vulnsight/vulnsight/internal/storage"
)

type scanFlags struct {
	target     string
	outputJSON string
	html       string
	pdf        string
}

// runnerOptions is appended to every runner the scan command builds.
// Tests use it to replace the real tools.
var runnerOptions []runner.Option

func (a *app) runScan(cmd *cobra.Command, f *scanFlags) error {
	if !cmd.Flags().Changed("target") {
		return cmd.Help()
	}
	target, err := runner.ValidateTarget(f.target)
	if err != nil {
		return err
	}
	a.cfg.Target = target
	a.cfg.OutputJSON = f.outputJSON
	a.cfg.OutputHTML = f.html
	a.cfg.OutputPDF = f.pdf

	a.printBanner(cmd)
	ctx := cmd.Context()

	// a broken database costs the history entry, not the scan
	var store storage.Store
	if s, err := a.openStore(ctx); err != nil {
		status.Errorf("%v; the result will not be saved.", err)
	} else {
		store = s
		defer store.Close()
	}

	rec, entry := runner.New(a.cfg, store, runnerOptions...).Scan(ctx, target)
	if ctx.Err() != nil {
		return fmt.Errorf("scan of %s interrupted", target)
	}

	if err := printResult(cmd, rec); err != nil {
		return err
	}

	var meta report.Meta
	if entry != nil {
		meta = report.Meta{ID: entry.ID, Timestamp: entry.Timestamp}
	}
	a.writeOutputs(rec, meta)
	debug.Summary()
	return nil
}

func printResult(cmd *cobra.Command, rec *output.Record) error {
	data, err := output.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	w := cmd.OutOrStdout()
	bar := strings.Repeat("=", 20)
	green := color.New(color.FgGreen, color.Bold)
	fmt.Fprintln(w)
	green.Fprintf(w, "%s SCAN COMPLETE %s\n", bar, bar)
	fmt.Fprintln(w, string(data))
	green.Fprintln(w, strings.Repeat("=", 55))
	return nil
}

// writeOutputs saves the requested files. A failed write is reported and
// does not stop the others.
func (a *app) writeOutputs(rec *output.Record, meta report.Meta) {
	save := func(kind, path string, write func() error) {
		if path == "" {
			return
		}
		status.Infof("Saving %s to '%s'...", kind, path)
		if err := write(); err != nil {
			status.Errorf("Could not save %s: %v", kind, err)
			return
		}
		status.Infof("Saved %s to '%s'.", kind, path)
	}

	save("JSON result", a.cfg.OutputJSON, func() error { return output.WriteJSON(a.cfg.OutputJSON, rec) })
	save("HTML report", a.cfg.OutputHTML, func() error { return report.WriteHTML(a.cfg.OutputHTML, rec, meta) })
	save("PDF report", a.cfg.OutputPDF, func() error { return report.WritePDF(a.cfg.OutputPDF, rec, meta) })
}
