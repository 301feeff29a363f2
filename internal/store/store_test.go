package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type skill struct {
	Number string   `json:"skillNumber"`
	Title  string   `json:"title"`
	Vocab  []string `json:"vocabulary"`
}

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveUpsertsByNaturalKey(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	first := s.Save(ctx, "skill", "660", skill{Number: "660", Title: "Ratios"})
	require.True(t, first.Success, first.Error)
	assert.NotZero(t, first.ID)

	second := s.Save(ctx, "skill", "660", skill{Number: "660", Title: "Understanding Ratios", Vocab: []string{"ratio"}})
	require.True(t, second.Success, second.Error)
	assert.Equal(t, first.ID, second.ID)

	var got skill
	require.NoError(t, s.Get(ctx, "skill", "660", &got))
	assert.Equal(t, "Understanding Ratios", got.Title)
	assert.Equal(t, []string{"ratio"}, got.Vocab)

	n, err := s.Count(ctx, "skill")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveSeparatesKinds(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	a := s.Save(ctx, "lesson", "1", map[string]string{"title": "Lesson 1"})
	b := s.Save(ctx, "section", "1", map[string]string{"title": "Section A"})
	require.True(t, a.Success)
	require.True(t, b.Success)
	assert.NotEqual(t, a.ID, b.ID)

	keys, err := s.Keys(ctx, "lesson")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, keys)
}

func TestSaveReportsFailure(t *testing.T) {
	s := openTemp(t)
	res := s.Save(context.Background(), "skill", "x", make(chan int))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "marshal")
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	var out skill
	assert.ErrorIs(t, s.Get(context.Background(), "skill", "nope", &out), ErrNotFound)
}
