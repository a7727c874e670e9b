package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/getpup/codegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_KeepsListsAndErrors(t *testing.T) {
	job := codegen.BatchJob{
		TaskID: "batch_1",
		Status: codegen.JobCompleted,
		Items:  []codegen.Item{{Index: 0, Code: "A-001"}, {Index: 2, Code: "A-002", Image: []byte("img")}},
		Errors: []codegen.ItemError{{Index: 1, Params: map[string]string{"dept": "QA"}, Error: "bad"}},
		Render: codegen.RenderOptions{Symbology: codegen.SymbologyCode128, Width: 300, Height: 150},
	}

	data, err := Marshal(job)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, job.Items, got.Items)
	assert.Equal(t, job.Errors, got.Errors)
	assert.Equal(t, job.Render, got.Render)
}

func TestUnmarshal_RejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("{"))
	assert.Error(t, err)
}

func TestMemoryCache_ExpiresEntries(t *testing.T) {
	now := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, codegen.BatchJob{TaskID: "batch_1"}, time.Minute))

	_, err := c.Get(ctx, "batch_1")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "batch_1")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryCache_MissingEntry(t *testing.T) {
	_, err := NewMemoryCache().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
