package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roundtable-cli/internal/model"
	"github.com/sells-group/roundtable-cli/internal/store"
)

func testStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRunOutcome(t *testing.T) {
	status, detail := runOutcome(nil)
	assert.Equal(t, model.RunStatusComplete, status)
	assert.Empty(t, detail)

	status, _ = runOutcome(eris.Wrap(context.Canceled, "enrich"))
	assert.Equal(t, model.RunStatusInterrupted, status)

	status, detail = runOutcome(errors.New("boom"))
	assert.Equal(t, model.RunStatusFailed, status)
	assert.Equal(t, "boom", detail)
}

func TestTrackRun_RecordsOutcome(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	require.NoError(t, trackRun(ctx, st, model.StageCrawl, func() (int, error) { return 7, nil }))
	err := trackRun(ctx, st, model.StageEnrich, func() (int, error) {
		return 0, fmt.Errorf("stage: %w", context.Canceled)
	})
	require.ErrorIs(t, err, context.Canceled)

	crawlRuns, err := st.ListRuns(ctx, store.RunFilter{Stage: model.StageCrawl})
	require.NoError(t, err)
	require.Len(t, crawlRuns, 1)
	assert.Equal(t, model.RunStatusComplete, crawlRuns[0].Status)
	assert.Equal(t, 7, crawlRuns[0].Records)

	enrichRuns, err := st.ListRuns(ctx, store.RunFilter{Stage: model.StageEnrich})
	require.NoError(t, err)
	require.Len(t, enrichRuns, 1)
	assert.Equal(t, model.RunStatusInterrupted, enrichRuns[0].Status)
}

func TestTrackRun_WithoutStore(t *testing.T) {
	called := false
	err := trackRun(context.Background(), nil, model.StageCrawl, func() (int, error) {
		called = true
		return 1, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
