package rules

import (
	"context"
	"testing"

	"github.com/getpup/codegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource_PutAndGet(t *testing.T) {
	s := NewMemorySource()
	rule := codegen.CodeRule{ID: "R1", Name: "Asset", Segments: []codegen.Segment{codegen.Fixed{Value: "A"}}}

	require.NoError(t, s.Put(rule))

	got, err := s.GetRule(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, rule, got)
}

func TestMemorySource_UnknownRule(t *testing.T) {
	s := NewMemorySource()

	_, err := s.GetRule(context.Background(), "nope")

	assert.ErrorIs(t, err, codegen.ErrNotFound)
	var nf *codegen.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "rule", nf.Kind)
	assert.Equal(t, "nope", nf.ID)
}

func TestMemorySource_PutRejectsInvalidRules(t *testing.T) {
	s := NewMemorySource()

	assert.ErrorIs(t, s.Put(codegen.CodeRule{Segments: []codegen.Segment{codegen.Fixed{}}}), codegen.ErrValidation)
	assert.ErrorIs(t, s.Put(codegen.CodeRule{ID: "R1"}), codegen.ErrValidation)
	assert.Empty(t, s.IDs())
}

func TestMemorySource_GetReturnsCopy(t *testing.T) {
	s := NewMemorySource()
	require.NoError(t, s.Put(codegen.CodeRule{ID: "R1", Segments: []codegen.Segment{codegen.Fixed{Value: "A"}}}))

	got, err := s.GetRule(context.Background(), "R1")
	require.NoError(t, err)
	got.Segments[0] = codegen.Fixed{Value: "changed"}

	again, err := s.GetRule(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, codegen.Fixed{Value: "A"}, again.Segments[0])
}

func TestMemorySource_PutJSON(t *testing.T) {
	s := NewMemorySource()

	err := s.PutJSON("R1", "Asset", []byte(`[{"type":"fixed","value":"A-"},{"type":"serial","length":4,"resetType":"daily"}]`))
	require.NoError(t, err)

	rule, err := s.GetRule(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, []codegen.Segment{
		codegen.Fixed{Value: "A-"},
		codegen.Serial{Length: 4, Start: 1, Reset: codegen.ResetDaily},
	}, rule.Segments)
}

func TestMemorySource_PutJSONRejectsUnknownSegment(t *testing.T) {
	s := NewMemorySource()

	err := s.PutJSON("R1", "", []byte(`[{"type":"barcode"}]`))

	assert.ErrorIs(t, err, codegen.ErrUnsupportedSegment)
}

func TestMemorySource_LoadJSON(t *testing.T) {
	s := NewMemorySource()
	doc := []byte(`{"rules":[
		{"id":"R1","name":"One","segments":[{"type":"fixed","value":"A"}]},
		{"id":"R2","segments":[{"type":"date","format":"YYYYMM"},{"type":"separator","value":"-"}]}
	]}`)

	n, err := s.LoadJSON(doc)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"R1", "R2"}, s.IDs())

	r2, err := s.GetRule(context.Background(), "R2")
	require.NoError(t, err)
	assert.Equal(t, []codegen.Segment{codegen.Date{Format: "YYYYMM"}, codegen.Separator{Value: "-"}}, r2.Segments)
}

func TestMemorySource_LoadJSONIsAllOrNothing(t *testing.T) {
	s := NewMemorySource()
	doc := []byte(`{"rules":[
		{"id":"R1","segments":[{"type":"fixed","value":"A"}]},
		{"id":"R2","segments":[{"type":"serial","resetType":"hourly"}]}
	]}`)

	_, err := s.LoadJSON(doc)

	assert.ErrorIs(t, err, codegen.ErrValidation)
	assert.Empty(t, s.IDs())
}

func TestMemorySource_LoadJSONRejectsMalformedDocuments(t *testing.T) {
	s := NewMemorySource()

	for _, doc := range []string{`not json`, `{"rules":{}}`, `{"rules":[{"segments":[]}]}`, `{"rules":[{"id":"R1","segments":[]}]}`} {
		_, err := s.LoadJSON([]byte(doc))
		assert.ErrorIs(t, err, codegen.ErrValidation, doc)
	}
}

func TestMemorySource_Delete(t *testing.T) {
	s := NewMemorySource()
	require.NoError(t, s.Put(codegen.CodeRule{ID: "R1", Segments: []codegen.Segment{codegen.Fixed{}}}))

	assert.True(t, s.Delete("R1"))
	assert.False(t, s.Delete("R1"))
}

func TestMockSource_RecordsCalls(t *testing.T) {
	m := NewMockSource(codegen.CodeRule{ID: "R1"})

	_, err := m.GetRule(context.Background(), "R1")
	require.NoError(t, err)
	_, err = m.GetRule(context.Background(), "R2")
	assert.ErrorIs(t, err, codegen.ErrNotFound)

	assert.Equal(t, []string{"R1", "R2"}, m.GetRuleCalls)
}
