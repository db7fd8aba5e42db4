package ingest

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/run-harness/internal/artifact"
	"github.com/sells-group/run-harness/internal/store"
)

func TestParseJSON(t *testing.T) {
	t.Run("array of objects", func(t *testing.T) {
		records, err := ParseJSON(`[{"a":1},{"a":2}]`)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, float64(2), records[1]["a"])
	})

	t.Run("single object wraps", func(t *testing.T) {
		records, err := ParseJSON(`{"a":1}`)
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("non-object element", func(t *testing.T) {
		_, err := ParseJSON(`[{"a":1},"oops"]`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "element 1")
	})

	t.Run("scalar input", func(t *testing.T) {
		_, err := ParseJSON(`42`)
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseJSON(`{"a":`)
		assert.Error(t, err)
	})
}

func TestParseCSV(t *testing.T) {
	records, err := ParseCSV("Name,Count\nalpha,3\nbeta,7\n")
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Headers lowercase, values stay strings.
	assert.Equal(t, "alpha", records[0]["name"])
	assert.Equal(t, "3", records[0]["count"])
	assert.Equal(t, "7", records[1]["count"])
}

func TestParseCSV_Empty(t *testing.T) {
	records, err := ParseCSV("")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestValidate_Required(t *testing.T) {
	rules := Rules{Required: []string{"name"}}

	err := Validate([]artifact.Record{{"name": "x"}, {"other": 1}}, rules)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, eris.As(err, &verr))
	assert.Equal(t, KindSchema, verr.Kind)
	assert.Equal(t, 1, verr.RecordIndex)
	assert.Contains(t, verr.Message, "name")
}

func TestValidate_EmptyRequired(t *testing.T) {
	err := Validate([]artifact.Record{{"name": ""}}, Rules{Required: []string{"name"}})
	var verr *ValidationError
	require.True(t, eris.As(err, &verr))
	assert.Equal(t, KindSchema, verr.Kind)
	assert.Contains(t, verr.Message, "empty")
}

func TestValidate_Types(t *testing.T) {
	rules := Rules{Types: map[string]string{"count": "int", "name": "string"}}

	assert.NoError(t, Validate([]artifact.Record{{"count": float64(3), "name": "x"}}, rules))
	// "int" accepts numeric strings, matching CSV output.
	assert.NoError(t, Validate([]artifact.Record{{"count": "3"}}, rules))
	// Absent typed fields are fine.
	assert.NoError(t, Validate([]artifact.Record{{"other": 1}}, rules))

	err := Validate([]artifact.Record{{"count": "three"}}, rules)
	var verr *ValidationError
	require.True(t, eris.As(err, &verr))
	assert.Equal(t, KindSchema, verr.Kind)
}

func TestValidate_MinCount(t *testing.T) {
	minCount := 2
	rules := Rules{MinCount: &minCount}

	assert.NoError(t, Validate([]artifact.Record{{"count": float64(5)}}, rules))
	assert.NoError(t, Validate([]artifact.Record{{"other": 1}}, rules))

	err := Validate([]artifact.Record{{"count": float64(5)}, {"count": "1"}}, rules)
	var verr *ValidationError
	require.True(t, eris.As(err, &verr))
	assert.Equal(t, KindSemantic, verr.Kind)
	assert.Equal(t, 1, verr.RecordIndex)
}

func TestPipeline_Run(t *testing.T) {
	st := store.NewMemory()
	p := NewPipeline(st)

	records, err := p.Run(context.Background(), `[{"name":"x","count":3}]`, Options{Format: "json"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	saved, err := st.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "x", saved[0]["name"])
}

func TestPipeline_DryRun(t *testing.T) {
	st := store.NewMemory()
	p := NewPipeline(st)

	_, err := p.Run(context.Background(), `[{"name":"x"}]`, Options{Format: "json", DryRun: true})
	require.NoError(t, err)

	saved, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPipeline_ValidationStopsSave(t *testing.T) {
	st := store.NewMemory()
	p := NewPipeline(st)
	opts := Options{Format: "json", Rules: Rules{Required: []string{"name"}}}

	_, err := p.Run(context.Background(), `[{"other":1}]`, opts)
	require.Error(t, err)

	saved, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved)

	// Skipping validation lets the same input through.
	opts.SkipValidation = true
	_, err = p.Run(context.Background(), `[{"other":1}]`, opts)
	assert.NoError(t, err)
}

func TestPipeline_NormalizeKeys(t *testing.T) {
	p := NewPipeline(nil)

	records, err := p.Run(context.Background(), `[{"Name":"x"}]`, Options{Format: "json", NormalizeKeys: true})
	require.NoError(t, err)
	_, ok := records[0]["name"]
	assert.True(t, ok)
}

func TestPipeline_UnknownFormat(t *testing.T) {
	p := NewPipeline(nil)

	_, err := p.Run(context.Background(), "whatever", Options{Format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
