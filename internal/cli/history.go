package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.History(ctx)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, "No scans saved yet.")
				return nil
			}

			cyan := color.New(color.FgCyan, color.Bold)
			cyan.Fprintf(w, "%-10s %-20s %s\n", "ID", "TIMESTAMP", "TARGET")
			fmt.Fprintln(w, "─────────────────────────────────────────────────────")
			for _, e := range entries {
				fmt.Fprintf(w, "%-10s %-20s %s\n", e.ID, e.Timestamp, e.Target)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the history as JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved scan as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scan, err := a.loadScan(cmd, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(scan)
		},
	}
}

func (a *app) loadScan(cmd *cobra.Command, id string) (*storage.Scan, error) {
	ctx := cmd.Context()
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	scan, err := store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("no saved scan with id %q (see 'vulnsight history')", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load scan %s: %w", id, err)
	}
	return scan, nil
}
