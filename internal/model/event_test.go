package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() EventRecord {
	return EventRecord{
		ID:          7,
		Title:       "Time & Mind",
		Date:        "Saturday, May 5th",
		Time:        "4:30 - 6:30PM",
		Description: "A roundtable on time.",
		Panelists: []Panelist{
			{Name: "Ada", Title: "Professor, MIT", Bio: "Ada bio."},
			{Name: "Grace", Title: "", Bio: ""},
		},
	}
}

func TestEventRecord_MarshalWireShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(sampleRecord())
	require.NoError(t, err)

	want := `{"id":7,"title":"Time & Mind","date":"Saturday, May 5th","time":"4:30 - 6:30PM",` +
		`"description":"A roundtable on time.","panelist":{"name_1":"Ada","title_1":"Professor, MIT",` +
		`"description_1":"Ada bio.","name_2":"Grace","title_2":"","description_2":""}}`
	assert.Equal(t, want, string(data))
}

func TestEventRecord_MarshalEnriched(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	e := EmptyEnrichedFields()
	e.SummaryOneSentence = "One."
	e.Keywords = []string{"time"}
	e.PanelistCount = 2
	rec.Enriched = &e

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, k := range EnrichmentKeys() {
		assert.Contains(t, raw, k)
	}
	assert.JSONEq(t, `[]`, string(raw[KeyInstitutions]))
	assert.JSONEq(t, `2`, string(raw[KeyPanelistCount]))
}

func TestEventRecord_RoundTripPreservesOrder(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	for i := 0; i < 10; i++ {
		rec.Panelists = append(rec.Panelists, Panelist{Name: string(rune('a' + i))})
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got EventRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
	assert.Nil(t, got.Enriched)
	assert.Equal(t, 12, got.PanelistCount())
}

func TestEventRecord_UnmarshalSparsePanelists(t *testing.T) {
	t.Parallel()

	in := `{"id":1,"title":"t","panelist":{"name_2":"B","description_1":"a bio"}}`
	var got EventRecord
	require.NoError(t, json.Unmarshal([]byte(in), &got))

	require.Len(t, got.Panelists, 2)
	assert.Equal(t, Panelist{Bio: "a bio"}, got.Panelists[0])
	assert.Equal(t, Panelist{Name: "B"}, got.Panelists[1])
}

func TestEventRecord_UnmarshalRejectsOversizedPanelistIndex(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		`{"id":1,"panelist":{"name_5000000":"x"}}`,
		`{"id":1,"panelist":{"name_1":"a","title_3":"b"}}`,
		`{"id":1,"panelist":{"name_99999999999999999999":"x"}}`,
	} {
		var got EventRecord
		err := json.Unmarshal([]byte(in), &got)
		require.Error(t, err, in)
		assert.Empty(t, got.Panelists, in)
	}
}

func TestEventRecord_UnmarshalPartialEnrichment(t *testing.T) {
	t.Parallel()

	in := `{"id":1,"panelist":{},"keywords":["a","b"]}`
	var got EventRecord
	require.NoError(t, json.Unmarshal([]byte(in), &got))

	require.NotNil(t, got.Enriched)
	assert.Equal(t, []string{"a", "b"}, got.Enriched.Keywords)
	assert.Equal(t, []string{}, got.Enriched.Institutions)
	assert.Empty(t, got.Panelists)
}

func TestEventRecord_UnmarshalInvalid(t *testing.T) {
	t.Parallel()

	var got EventRecord
	assert.Error(t, json.Unmarshal([]byte(`{"id":"x"}`), &got))
}

func TestEnrichedFields_ListAccessors(t *testing.T) {
	t.Parallel()

	e := EmptyEnrichedFields()
	for _, f := range ListFields() {
		assert.True(t, IsListField(f))
		assert.True(t, e.SetList(f, []string{f}))
		got, ok := e.List(f)
		require.True(t, ok)
		assert.Equal(t, []string{f}, got)
	}

	assert.False(t, IsListField(KeySummaryShort))
	assert.False(t, e.SetList("bogus", nil))
	_, ok := e.List("bogus")
	assert.False(t, ok)

	var nilFields *EnrichedFields
	_, ok = nilFields.List(KeyKeywords)
	assert.False(t, ok)
}

func TestEnrichedFields_CloneIsDeep(t *testing.T) {
	t.Parallel()

	e := EmptyEnrichedFields()
	e.Keywords = []string{"a"}
	c := e.Clone()
	c.Keywords[0] = "b"
	assert.Equal(t, "a", e.Keywords[0])
}
