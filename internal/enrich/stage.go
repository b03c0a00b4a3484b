// Package enrich derives summaries, keywords, institutions and specialities
// for each extracted record through an inference service. Progress is kept as
// a prefix checkpoint so an interrupted run resumes at the first record that
// has not been committed.
package enrich

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/checkpoint"
	"github.com/sells-group/roundtable-cli/internal/config"
	"github.com/sells-group/roundtable-cli/internal/inference"
	"github.com/sells-group/roundtable-cli/internal/model"
)

// Stage runs enrichment over a corpus.
type Stage struct {
	svc            inference.Service
	checkpointPath string
	timeout        time.Duration
	minDelay       time.Duration
	maxDelay       time.Duration
	maxTokens      int64
}

// New creates a Stage from the enrich config section.
func New(svc inference.Service, cfg config.EnrichConfig) *Stage {
	s := &Stage{
		svc:            svc,
		checkpointPath: cfg.CheckpointPath,
		timeout:        config.Secs(cfg.TimeoutSecs),
		minDelay:       config.Millis(cfg.MinDelayMs),
		maxDelay:       config.Millis(cfg.MaxDelayMs),
		maxTokens:      cfg.MaxTokens,
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if s.maxDelay < s.minDelay {
		s.maxDelay = s.minDelay
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 500
	}
	return s
}

// Run enriches records in order and returns the enriched corpus. A record
// whose call fails keeps the empty fallback fields. On cancellation the
// in-flight record is discarded and ctx.Err() is returned; the checkpoint
// still holds every record completed before it.
func (s *Stage) Run(ctx context.Context, records []model.EventRecord) ([]model.EventRecord, error) {
	done, err := s.loadPrefix(records)
	if err != nil {
		return nil, err
	}
	if len(done) > 0 {
		zap.L().Info("enrich: resuming from checkpoint",
			zap.Int("completed", len(done)),
			zap.Int("total", len(records)),
		)
	}

	out := make([]model.EventRecord, 0, len(records))
	out = append(out, done...)

	var failed int
	for i := len(done); i < len(records); i++ {
		if i > len(done) {
			if err := s.pause(ctx); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, ok, err := s.enrichOne(ctx, records[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			failed++
		}
		out = append(out, rec)

		if s.checkpointPath != "" {
			if err := checkpoint.Save(s.checkpointPath, out); err != nil {
				return nil, eris.Wrap(err, "enrich: save checkpoint")
			}
		}
		zap.L().Info("enrich: record done",
			zap.Int("id", rec.ID),
			zap.Int("position", i+1),
			zap.Int("total", len(records)),
			zap.Bool("fallback", !ok),
		)
	}

	zap.L().Info("enrich: complete",
		zap.Int("records", len(out)),
		zap.Int("resumed", len(done)),
		zap.Int("fallbacks", failed),
	)
	return out, nil
}

// RunFile enriches the corpus at in and writes it to out. The checkpoint is
// removed only after the output is on disk.
func (s *Stage) RunFile(ctx context.Context, in, out string) (int, error) {
	records, err := checkpoint.LoadCorpus(in)
	if err != nil {
		return 0, err
	}

	enriched, err := s.Run(ctx, records)
	if err != nil {
		return 0, err
	}

	if err := checkpoint.WriteJSON(out, enriched); err != nil {
		return 0, eris.Wrap(err, "enrich: write output")
	}
	if s.checkpointPath != "" {
		if err := checkpoint.Remove(s.checkpointPath); err != nil {
			return 0, eris.Wrap(err, "enrich: remove checkpoint")
		}
	}
	return len(enriched), nil
}

// enrichOne calls the service for one record. ok is false when the fallback
// fields were used. A non-nil error means the run was cancelled.
func (s *Stage) enrichOne(ctx context.Context, rec model.EventRecord) (model.EventRecord, bool, error) {
	resp, err := inference.Call(ctx, s.svc, s.timeout, inference.Request{
		Phase:     model.StageEnrich,
		System:    systemPrompt,
		Prompt:    buildPrompt(rec),
		MaxTokens: s.maxTokens,
		Keys:      model.EnrichmentKeys(),
	})

	if ctx.Err() != nil {
		return model.EventRecord{}, false, ctx.Err()
	}

	fields := model.EmptyEnrichedFields()
	ok := false
	if err != nil {
		zap.L().Warn("enrich: inference failed, using empty fields",
			zap.Int("id", rec.ID),
			zap.Error(err),
		)
	} else if decoded, derr := decodeFields(resp); derr != nil {
		zap.L().Warn("enrich: unusable response, using empty fields",
			zap.Int("id", rec.ID),
			zap.Error(derr),
		)
	} else {
		if decoded.PanelistCount != rec.PanelistCount() {
			zap.L().Info("enrich: panelist count disagrees with extraction",
				zap.Int("id", rec.ID),
				zap.Int("extracted", rec.PanelistCount()),
				zap.Int("inferred", decoded.PanelistCount),
			)
		}
		decoded.PanelistCount = rec.PanelistCount()
		fields = decoded
		ok = true
	}

	rec.Enriched = &fields
	return rec, ok, nil
}

// loadPrefix reads the checkpoint and checks it is a prefix of records.
func (s *Stage) loadPrefix(records []model.EventRecord) ([]model.EventRecord, error) {
	if s.checkpointPath == "" {
		return nil, nil
	}
	var prefix []model.EventRecord
	found, err := checkpoint.Load(s.checkpointPath, &prefix)
	if err != nil {
		return nil, eris.Wrapf(model.ErrFatalConfig, "enrich: unreadable checkpoint: %v", err)
	}
	if !found {
		return nil, nil
	}
	if len(prefix) > len(records) {
		return nil, eris.Wrapf(model.ErrFatalConfig,
			"enrich: checkpoint has %d records but corpus has %d", len(prefix), len(records))
	}
	for i := range prefix {
		if prefix[i].ID != records[i].ID || prefix[i].Enriched == nil {
			return nil, eris.Wrapf(model.ErrFatalConfig,
				"enrich: checkpoint record %d (id %d) does not match corpus id %d",
				i, prefix[i].ID, records[i].ID)
		}
	}
	return prefix, nil
}

// pause sleeps a random duration in [minDelay, maxDelay], returning early on
// cancellation.
func (s *Stage) pause(ctx context.Context) error {
	d := s.minDelay
	if span := s.maxDelay - s.minDelay; span > 0 {
		d += rand.N(span + 1)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
