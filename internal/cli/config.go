package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vulnsight/vulnsight/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
		Long: `Manage the VulnSight configuration file (~/.vulnsight/config.yaml).

Commands:
  show  - Display the effective configuration (API key masked)
  init  - Create a template config file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Display the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a.showConfig(cmd)
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create a template config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := a.path()
				created, err := config.CreateDefault(path)
				if err != nil {
					return fmt.Errorf("create config: %w", err)
				}
				w := cmd.OutOrStdout()
				if !created {
					fmt.Fprintf(w, "Config file already exists: %s\n", path)
					return nil
				}
				color.New(color.FgGreen).Fprintf(w, "[+] Created %s\n", path)
				fmt.Fprintln(w, "    Add your Gemini API key to enable AI suggestions.")
				return nil
			},
		},
	)
	return cmd
}

func (a *app) path() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.DefaultPath()
}

func (a *app) showConfig(cmd *cobra.Command) {
	w := cmd.OutOrStdout()
	c := a.cfg
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintln(w, "\n[+] VulnSight Configuration")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-16s %s\n", "Gemini API key:", config.MaskKey(c.AI.APIKey))
	fmt.Fprintf(w, "  %-16s %s\n", "Model:", c.AI.Model)
	fmt.Fprintf(w, "  %-16s %s\n", "Endpoint:", c.AI.Endpoint)
	fmt.Fprintf(w, "  %-16s %d\n", "AI rate (rpm):", c.AI.RPMLimit)
	fmt.Fprintf(w, "  %-16s %s\n", "Database:", c.Database.Driver)
	if c.Database.Driver == "postgres" {
		fmt.Fprintf(w, "  %-16s %s\n", "Database URL:", config.MaskKey(c.Database.URL))
	} else {
		fmt.Fprintf(w, "  %-16s %s\n", "Database path:", c.Database.Path)
	}
	fmt.Fprintf(w, "  %-16s %s\n", "Dashboard:", c.Server.Listen)

	fmt.Fprintln(w, "\n  Timeouts (minutes):")
	fmt.Fprintf(w, "    subfinder %d, nmap %d, whatweb %d, nuclei %d\n",
		c.Timeouts.Subfinder, c.Timeouts.Nmap, c.Timeouts.WhatWeb, c.Timeouts.Nuclei)

	if len(c.Tools) > 0 {
		fmt.Fprintln(w, "\n  Tool overrides:")
		for _, name := range slices.Sorted(maps.Keys(c.Tools)) {
			fmt.Fprintf(w, "    %-10s %s\n", name, c.Tools[name])
		}
	}

	gray.Fprintf(w, "\nEdit configuration: %s\n", a.path())
}
