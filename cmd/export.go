package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/checkpoint"
	"github.com/sells-group/roundtable-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Flatten a corpus into CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := flagOr(cmd, "in", cfg.Normalize.Output)
		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		if out == "" {
			return eris.New("--out is required")
		}

		records, err := checkpoint.LoadCorpus(in)
		if err != nil {
			return err
		}
		if err := export.WriteFile(out, format, records); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.Int("records", len(records)),
			zap.String("output", out),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("in", "", "input corpus (default normalize.output)")
	exportCmd.Flags().String("out", "", "output file (.csv or .xlsx)")
	exportCmd.Flags().String("format", "", "csv or xlsx (default from --out extension)")
	rootCmd.AddCommand(exportCmd)
}
