package main

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/config"
	"github.com/sells-group/roundtable-cli/internal/fetcher"
	"github.com/sells-group/roundtable-cli/internal/inference"
	"github.com/sells-group/roundtable-cli/internal/model"
	"github.com/sells-group/roundtable-cli/internal/resilience"
	"github.com/sells-group/roundtable-cli/internal/store"
	anthropicpkg "github.com/sells-group/roundtable-cli/pkg/anthropic"
)

// initStore opens and migrates the SQLite store. It returns nil, nil when no
// store path is configured.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// requireStore is initStore for commands that cannot work without one.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("store.path is not configured (ROUNDTABLE_STORE_PATH)")
	}
	return st, nil
}

// initFetcher builds the site fetcher. The page cache is attached when a
// store is available.
func initFetcher(st store.Store) *fetcher.HTTPFetcher {
	opts := fetcher.HTTPOptions{
		SiteURL:   cfg.Site.BaseURL,
		UserAgent: cfg.Site.UserAgent,
		Timeout:   config.Secs(cfg.Crawl.TimeoutSecs),
		MinDelay:  config.Millis(cfg.Crawl.MinDelayMs),
		Retry:     resilience.RetryFromConfig(cfg.Resilience, cfg.Crawl.MaxAttempts, "site", "fetch"),
	}
	if st != nil && cfg.Crawl.CacheTTLHours > 0 {
		opts.Cache = st
		opts.CacheTTL = config.Secs(cfg.Crawl.CacheTTLHours * 3600)
	}
	return fetcher.NewHTTPFetcher(opts)
}

// initInference builds the Anthropic-backed inference service.
func initInference() inference.Service {
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return inference.NewAnthropicService(client, cfg.Anthropic, cfg.Resilience)
}

// trackRun runs fn and records the invocation in st when one is configured.
// fn returns the number of records it produced.
func trackRun(ctx context.Context, st store.Store, stage string, fn func() (int, error)) error {
	var run *model.StageRun
	if st != nil {
		r, err := st.CreateRun(ctx, stage)
		if err != nil {
			zap.L().Warn("could not record stage run", zap.String("stage", stage), zap.Error(err))
		} else {
			run = r
		}
	}

	n, err := fn()

	if run != nil {
		status, detail := runOutcome(err)
		if ferr := st.FinishRun(context.WithoutCancel(ctx), run.ID, status, n, detail); ferr != nil {
			zap.L().Warn("could not finish stage run", zap.String("run_id", run.ID), zap.Error(ferr))
		}
	}
	return err
}

// runOutcome maps a stage error to the status recorded for the run.
func runOutcome(err error) (model.RunStatus, string) {
	switch {
	case err == nil:
		return model.RunStatusComplete, ""
	case isInterrupt(err):
		return model.RunStatusInterrupted, err.Error()
	default:
		return model.RunStatusFailed, err.Error()
	}
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// flagOr returns the string flag value, or def when the flag is empty.
func flagOr(cmd *cobra.Command, name, def string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return def
}
