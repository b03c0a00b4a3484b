package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/roundtable-cli/internal/checkpoint"
	"github.com/sells-group/roundtable-cli/internal/config"
	"github.com/sells-group/roundtable-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-stage progress from checkpoint and output files",
	RunE: func(_ *cobra.Command, _ []string) error {
		formatStatus(os.Stdout, collectStatus(cfg))
		return nil
	},
}

// stageStatus is one line of the status report.
type stageStatus struct {
	Stage  string
	State  model.StageState
	Cursor string
	Output string
}

// collectStatus derives each stage's state from its files.
func collectStatus(c *config.Config) []stageStatus {
	crawlState := model.StageNotStarted
	if checkpoint.Exists(c.Crawl.Output) {
		crawlState = model.StageComplete
	}
	out := []stageStatus{{Stage: model.StageCrawl, State: crawlState, Output: c.Crawl.Output}}

	enrichStatus := stageStatus{
		Stage:  model.StageEnrich,
		State:  checkpoint.State(c.Enrich.CheckpointPath, c.Enrich.Output),
		Output: c.Enrich.Output,
	}
	if enrichStatus.State == model.StageInProgress {
		var prefix []model.EventRecord
		if _, err := checkpoint.Load(c.Enrich.CheckpointPath, &prefix); err == nil {
			enrichStatus.Cursor = fmt.Sprintf("%d records", len(prefix))
		}
	}
	out = append(out, enrichStatus)

	normStatus := stageStatus{
		Stage:  model.StageNormalize,
		State:  checkpoint.State(c.Normalize.CheckpointPath, c.Normalize.Output),
		Output: c.Normalize.Output,
	}
	if normStatus.State == model.StageInProgress {
		state := model.NewNormalizationState()
		if _, err := checkpoint.Load(c.Normalize.CheckpointPath, state); err == nil {
			normStatus.Cursor = "fields: " + strings.Join(state.ProcessedFields, ", ")
		}
	}
	return append(out, normStatus)
}

// formatStatus writes the status table to w.
func formatStatus(out io.Writer, statuses []stageStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tSTATE\tPROGRESS\tOUTPUT")
	_, _ = fmt.Fprintln(w, "-----\t-----\t--------\t------")
	for _, s := range statuses {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Stage, s.State, s.Cursor, s.Output)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
