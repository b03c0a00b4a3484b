package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roundtable-cli/internal/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.json")
	state := model.NewNormalizationState()
	state.Commit("keywords", model.NormalizationMap{"AI & ML": "AI"})

	require.NoError(t, Save(path, state))

	var got model.NormalizationState
	found, err := Load(path, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, state.ProcessedFields, got.ProcessedFields)
	assert.Equal(t, "AI", got.NormalizationMaps["keywords"]["AI & ML"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"AI & ML"`, "html characters must not be escaped")
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	var v []int
	found, err := Load(filepath.Join(t.TempDir(), "nope.json"), &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var v map[string]any
	found, err := Load(path, &v)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "prefix.json")
	require.NoError(t, Save(path, []int{1}))
	require.NoError(t, Save(path, []int{1, 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "prefix.json", entries[0].Name())

	var got []int
	_, err = Load(path, &got)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cp.json")
	require.NoError(t, Remove(path))

	require.NoError(t, Save(path, map[string]int{"a": 1}))
	assert.True(t, Exists(path))
	require.NoError(t, Remove(path))
	assert.False(t, Exists(path))
}

func TestState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cp := filepath.Join(dir, "cp.json")
	out := filepath.Join(dir, "out.json")

	assert.Equal(t, model.StageNotStarted, State(cp, out))

	require.NoError(t, Save(cp, []int{}))
	assert.Equal(t, model.StageInProgress, State(cp, out))

	require.NoError(t, Save(out, []int{}))
	require.NoError(t, Remove(cp))
	assert.Equal(t, model.StageComplete, State(cp, out))
}

func TestLoadCorpus(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := filepath.Join(dir, "roundtables.json")
	require.NoError(t, WriteJSON(path, []model.EventRecord{{ID: 1, Title: "One"}, {ID: 2}}))
	records, err := LoadCorpus(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "One", records[0].Title)

	_, err = LoadCorpus(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, model.ErrFatalConfig)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not": "a list"}`), 0o644))
	_, err = LoadCorpus(bad)
	assert.ErrorIs(t, err, model.ErrFatalConfig)

	huge := filepath.Join(dir, "huge.json")
	require.NoError(t, os.WriteFile(huge, []byte(`[{"id":1,"panelist":{"name_5000000":"x"}}]`), 0o644))
	_, err = LoadCorpus(huge)
	assert.ErrorIs(t, err, model.ErrFatalConfig)
}
