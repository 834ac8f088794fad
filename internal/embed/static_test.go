package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(128)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "remember to use context.Context for cancellation", KindDocument)
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "remember to use context.Context for cancellation", KindDocument)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 128)
}

func TestStaticEmbedderKindChangesVector(t *testing.T) {
	e := NewStaticEmbedder(128)
	ctx := context.Background()

	doc, err := e.Embed(ctx, "same text", KindDocument)
	require.NoError(t, err)
	query, err := e.Embed(ctx, "same text", KindQuery)
	require.NoError(t, err)

	assert.NotEqual(t, doc, query)
}

func TestStaticEmbedderUnitNorm(t *testing.T) {
	e := NewStaticEmbedder(256)
	v, err := e.Embed(context.Background(), "a moderately long piece of memory content about database migrations", KindDocument)
	require.NoError(t, err)

	var sumSquares float64
	for _, f := range v {
		sumSquares += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestStaticEmbedderEmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(64)
	v, err := e.Embed(context.Background(), "   ", KindDocument)
	require.NoError(t, err)
	for _, f := range v {
		assert.Equal(t, float32(0), f)
	}
}

func TestStaticEmbedderEmbedBatch(t *testing.T) {
	e := NewStaticEmbedder(64)
	out, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"}, KindDocument)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Len(t, v, 64)
	}
}

func TestStaticEmbedderClose(t *testing.T) {
	e := NewStaticEmbedder(32)
	ctx := context.Background()
	assert.True(t, e.Available(ctx))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(ctx))

	_, err := e.Embed(ctx, "text", KindDocument)
	assert.Error(t, err)
}

func TestSplitCamelCaseAndSnakeCase(t *testing.T) {
	assert.Equal(t, []string{"get", "User", "Name"}, splitCamelCase("getUserName"))
	assert.Equal(t, []string{"user", "id"}, splitCodeToken("user_id"))
}
