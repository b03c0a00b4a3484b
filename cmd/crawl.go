package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/checkpoint"
	"github.com/sells-group/roundtable-cli/internal/crawl"
	"github.com/sells-group/roundtable-cli/internal/extract"
	"github.com/sells-group/roundtable-cli/internal/model"
	"github.com/sells-group/roundtable-cli/internal/selector"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the roundtable archive into a JSON corpus",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(model.StageCrawl); err != nil {
			return err
		}
		out := flagOr(cmd, "out", cfg.Crawl.Output)

		resolver, err := selector.Load(cfg.Selectors.Path)
		if err != nil {
			return eris.Wrap(err, "load selectors")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		f := initFetcher(st)
		ex := extract.New(f, resolver, extract.Options{AppendYear: cfg.Crawl.AppendYear})
		agg := crawl.NewAggregator(f, resolver, ex, crawl.Options{
			ListingURLTemplate: cfg.Crawl.ListingURLTemplate,
			Workers:            cfg.Crawl.Workers,
		})

		return trackRun(ctx, st, model.StageCrawl, func() (int, error) {
			start := time.Now()
			records, err := agg.Collect(ctx, cfg.Crawl.Periods())
			if err != nil {
				return 0, err
			}
			if err := checkpoint.WriteJSON(out, records); err != nil {
				return 0, eris.Wrap(err, "write corpus")
			}
			zap.L().Info("crawl complete",
				zap.Int("records", len(records)),
				zap.String("output", out),
				zap.Duration("elapsed", time.Since(start)),
			)
			if st != nil {
				if n, err := st.DeleteExpiredPages(context.WithoutCancel(ctx), time.Now()); err == nil && n > 0 {
					zap.L().Debug("pruned expired cache pages", zap.Int("count", n))
				}
			}
			return len(records), nil
		})
	},
}

func init() {
	crawlCmd.Flags().String("out", "", "output corpus path (default crawl.output)")
	rootCmd.AddCommand(crawlCmd)
}
