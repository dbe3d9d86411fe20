package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/report"
)

func newReportCmd(a *app) *cobra.Command {
	var html, pdf, jsonPath string
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Regenerate reports for a saved scan",
		Long: `Regenerate the HTML and/or PDF report of a scan saved in history.

Examples:
  vulnsight report a1b2c3d4 --html report.html
  vulnsight report a1b2c3d4 --pdf out/report.pdf -j out/result.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if html == "" && pdf == "" && jsonPath == "" {
				return errors.New("at least one of --html, --pdf or --output-json is required")
			}
			scan, err := a.loadScan(cmd, args[0])
			if err != nil {
				return err
			}
			a.cfg.OutputHTML = html
			a.cfg.OutputPDF = pdf
			a.cfg.OutputJSON = jsonPath
			a.writeOutputs(scan.Record, report.Meta{ID: scan.ID, Timestamp: scan.Timestamp})
			return nil
		},
	}
	cmd.Flags().StringVar(&html, "html", "", "Write an HTML report to this path")
	cmd.Flags().StringVar(&pdf, "pdf", "", "Write a PDF report to this path")
	cmd.Flags().StringVarP(&jsonPath, "output-json", "j", "", "Write the scan result as JSON to this path")
	return cmd
}
