package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/localrivet/csvexport/internal/config"
	"github.com/localrivet/csvexport/internal/tables"
)

func (a *app) tablesCmd() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := tables.Filter(nil, pattern); err != nil {
				return err
			}

			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}

			engine, err := a.newEngine(cfg)
			if err != nil {
				return err
			}

			names, err := engine.ListTables(cmd.Context(), pattern)
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fmt.Fprintln(a.stdout, "No tables found")
				return nil
			}

			table := tablewriter.NewWriter(a.stdout)
			table.SetHeader([]string{"Table"})
			table.SetBorder(false)
			for _, name := range names {
				table.Append([]string{name})
			}
			table.Render()

			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "only list tables matching this regular expression")

	return cmd
}

func (a *app) artifactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts",
		Short: "List exported CSV files, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}

			engine, err := a.newEngine(cfg)
			if err != nil {
				return err
			}

			files, err := engine.ListArtifacts(cmd.Context(), a.output(cmd, cfg))
			if err != nil {
				return err
			}

			if len(files) == 0 {
				fmt.Fprintln(a.stdout, "No artifacts found")
				return nil
			}

			table := tablewriter.NewWriter(a.stdout)
			table.SetHeader([]string{"File", "Size", "Modified"})
			table.SetBorder(false)
			table.SetColumnSeparator(" ")
			for _, f := range files {
				table.Append([]string{
					f.Path,
					formatBytes(f.Size),
					f.LastModified.Format("2006-01-02 15:04:05"),
				})
			}
			table.Render()

			return nil
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Re-check the artifacts recorded in a run manifest",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return &usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}

			engine, err := a.newEngine(cfg)
			if err != nil {
				return err
			}

			results, err := engine.VerifyRun(cmd.Context(), a.output(cmd, cfg), args[0])
			if err != nil {
				return err
			}

			invalid := 0
			for _, r := range results {
				if r.Valid {
					fmt.Fprintf(a.stdout, "%s is valid\n", r.Name)
					continue
				}
				invalid++
				fmt.Fprintf(a.stdout, "%s is INVALID\n", r.Name)
				for _, e := range r.Errors {
					fmt.Fprintf(a.stdout, "  - %s\n", e)
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d artifacts failed verification", invalid, len(results))
			}
			return nil
		},
	}
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
