// Package normalize canonicalizes the list-valued enrichment fields across a
// corpus. Each field's distinct terms are mapped in batches through an
// inference service, the merged map is closed so applying it is idempotent,
// and progress is committed per field.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roundtable-cli/internal/checkpoint"
	"github.com/sells-group/roundtable-cli/internal/config"
	"github.com/sells-group/roundtable-cli/internal/inference"
	"github.com/sells-group/roundtable-cli/internal/model"
)

const systemPrompt = "You are a data standardization assistant."

// Stage runs normalization over an enriched corpus.
type Stage struct {
	svc            inference.Service
	fields         []string
	batchSize      int
	timeout        time.Duration
	maxTokens      int64
	checkpointPath string
}

// New creates a Stage from the normalize config section. Unknown field names
// are ignored.
func New(svc inference.Service, cfg config.NormalizeConfig) *Stage {
	s := &Stage{
		svc:            svc,
		batchSize:      cfg.BatchSize,
		timeout:        config.Secs(cfg.TimeoutSecs),
		maxTokens:      cfg.MaxTokens,
		checkpointPath: cfg.CheckpointPath,
	}
	for _, f := range cfg.Fields {
		if model.IsListField(f) {
			s.fields = append(s.fields, f)
		} else {
			zap.L().Warn("normalize: ignoring unknown field", zap.String("field", f))
		}
	}
	if len(cfg.Fields) == 0 {
		s.fields = model.ListFields()
	}
	if s.batchSize <= 0 {
		s.batchSize = 50
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 4096
	}
	return s
}

// Run builds a closed map for every configured field not already committed,
// then rewrites the records through the maps. Cancellation discards the field
// in progress and returns ctx.Err().
func (s *Stage) Run(ctx context.Context, records []model.EventRecord) ([]model.EventRecord, map[string]model.NormalizationMap, error) {
	state := model.NewNormalizationState()
	if s.checkpointPath != "" {
		found, err := checkpoint.Load(s.checkpointPath, state)
		if err != nil {
			return nil, nil, eris.Wrapf(model.ErrFatalConfig, "normalize: unreadable checkpoint: %v", err)
		}
		if found {
			zap.L().Info("normalize: resuming from checkpoint",
				zap.Strings("processed_fields", state.ProcessedFields),
			)
		}
	}

	for _, field := range s.fields {
		if state.Processed(field) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		m, err := s.normalizeField(ctx, records, field)
		if err != nil {
			return nil, nil, err
		}

		state.Commit(field, m)
		if s.checkpointPath != "" {
			if err := checkpoint.Save(s.checkpointPath, state); err != nil {
				return nil, nil, eris.Wrap(err, "normalize: save checkpoint")
			}
		}
		zap.L().Info("normalize: field committed",
			zap.String("field", field),
			zap.Int("terms", len(m)),
			zap.Int("processed", len(state.ProcessedFields)),
			zap.Int("total", len(s.fields)),
		)
	}

	maps := make(map[string]model.NormalizationMap, len(s.fields))
	for _, field := range s.fields {
		maps[field] = state.NormalizationMaps[field]
	}
	return Apply(records, maps), maps, nil
}

// RunFile normalizes the corpus at in and writes the normalized corpus, the
// map file and the grouping report before removing the checkpoint.
func (s *Stage) RunFile(ctx context.Context, in, out, mapOut, reportOut string) (int, error) {
	records, err := checkpoint.LoadCorpus(in)
	if err != nil {
		return 0, err
	}

	normed, maps, err := s.Run(ctx, records)
	if err != nil {
		return 0, err
	}

	if err := checkpoint.WriteJSON(out, normed); err != nil {
		return 0, eris.Wrap(err, "normalize: write output")
	}
	if mapOut != "" {
		if err := checkpoint.WriteJSON(mapOut, maps); err != nil {
			return 0, eris.Wrap(err, "normalize: write map")
		}
	}
	if reportOut != "" {
		if err := checkpoint.WriteFile(reportOut, []byte(Report(maps, s.fields))); err != nil {
			return 0, eris.Wrap(err, "normalize: write report")
		}
	}
	if s.checkpointPath != "" {
		if err := checkpoint.Remove(s.checkpointPath); err != nil {
			return 0, eris.Wrap(err, "normalize: remove checkpoint")
		}
	}
	return len(normed), nil
}

// Apply returns a copy of records with every list field rewritten through its
// map. Values without an entry pass through; other fields are untouched.
func Apply(records []model.EventRecord, maps map[string]model.NormalizationMap) []model.EventRecord {
	out := make([]model.EventRecord, len(records))
	for i, r := range records {
		if r.Enriched != nil {
			e := r.Enriched.Clone()
			for field, m := range maps {
				if values, ok := e.List(field); ok {
					e.SetList(field, m.Apply(values))
				}
			}
			r.Enriched = &e
		}
		out[i] = r
	}
	return out
}

func (s *Stage) normalizeField(ctx context.Context, records []model.EventRecord, field string) (model.NormalizationMap, error) {
	values := DistinctValues(records, field)
	batches := Batches(values, s.batchSize)
	zap.L().Info("normalize: processing field",
		zap.String("field", field),
		zap.Int("terms", len(values)),
		zap.Int("batches", len(batches)),
	)

	merged := make(model.NormalizationMap, len(values))
	for i, batch := range batches {
		m, err := s.normalizeBatch(ctx, field, batch)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			zap.L().Warn("normalize: batch failed, keeping terms as-is",
				zap.String("field", field),
				zap.Int("batch", i+1),
				zap.Int("terms", len(batch)),
				zap.Error(err),
			)
		}
		for k, v := range m {
			merged[k] = v
		}
	}
	return Close(merged), nil
}

// normalizeBatch maps one batch. The returned map always covers the batch:
// terms the service left out, or answered with a non-string, map to
// themselves. On error every term maps to itself.
func (s *Stage) normalizeBatch(ctx context.Context, field string, batch []string) (model.NormalizationMap, error) {
	out := make(model.NormalizationMap, len(batch))
	for _, v := range batch {
		out[v] = v
	}

	resp, err := inference.Call(ctx, s.svc, s.timeout, inference.Request{
		Phase:     model.StageNormalize,
		System:    systemPrompt,
		Prompt:    buildPrompt(field, batch),
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return out, err
	}

	for k, raw := range resp {
		if _, ok := out[k]; !ok {
			continue
		}
		var v string
		if json.Unmarshal(raw, &v) != nil {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out, nil
}

func buildPrompt(field string, batch []string) string {
	return fmt.Sprintf("Normalize these %s terms (combine similar concepts, use standard phrasing). "+
		"Return only JSON mapping of original to normalized terms:\n%s", field, strings.Join(batch, ", "))
}
