package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/model"
	"github.com/sells-group/roundtable-cli/internal/normalize"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Canonicalize keywords, institutions and specialities across the corpus",
	Long:  "Builds a term map per list field through Claude, applies it to every record, and writes the map and a grouping report. Progress is checkpointed per field.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(model.StageNormalize); err != nil {
			return err
		}
		in := flagOr(cmd, "in", cfg.Normalize.Input)
		out := flagOr(cmd, "out", cfg.Normalize.Output)
		mapOut := flagOr(cmd, "map", cfg.Normalize.MapPath)
		reportOut := flagOr(cmd, "report", cfg.Normalize.ReportPath)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		stage := normalize.New(initInference(), cfg.Normalize)
		err = trackRun(ctx, st, model.StageNormalize, func() (int, error) {
			return stage.RunFile(ctx, in, out, mapOut, reportOut)
		})
		if isInterrupt(err) {
			zap.L().Info("normalize interrupted; progress saved", zap.String("checkpoint", cfg.Normalize.CheckpointPath))
			fmt.Fprintln(os.Stderr, "Interrupted. Re-run normalize to resume.")
			return nil
		}
		return err
	},
}

func init() {
	normalizeCmd.Flags().String("in", "", "input corpus (default normalize.input)")
	normalizeCmd.Flags().String("out", "", "normalized corpus (default normalize.output)")
	normalizeCmd.Flags().String("map", "", "normalization map file (default normalize.map_path)")
	normalizeCmd.Flags().String("report", "", "grouping report file (default normalize.report_path)")
	rootCmd.AddCommand(normalizeCmd)
}
