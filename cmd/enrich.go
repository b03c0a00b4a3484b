package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/enrich"
	"github.com/sells-group/roundtable-cli/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Add summaries, keywords, institutions and specialities to each record",
	Long:  "Sends each record to Claude for derived fields. Progress is checkpointed after every record; an interrupted run resumes where it stopped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(model.StageEnrich); err != nil {
			return err
		}
		in := flagOr(cmd, "in", cfg.Enrich.Input)
		out := flagOr(cmd, "out", cfg.Enrich.Output)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		stage := enrich.New(initInference(), cfg.Enrich)
		err = trackRun(ctx, st, model.StageEnrich, func() (int, error) {
			return stage.RunFile(ctx, in, out)
		})
		if isInterrupt(err) {
			zap.L().Info("enrich interrupted; progress saved", zap.String("checkpoint", cfg.Enrich.CheckpointPath))
			fmt.Fprintln(os.Stderr, "Interrupted. Re-run enrich to resume.")
			return nil
		}
		return err
	},
}

func init() {
	enrichCmd.Flags().String("in", "", "input corpus (default enrich.input)")
	enrichCmd.Flags().String("out", "", "output corpus (default enrich.output)")
	rootCmd.AddCommand(enrichCmd)
}
