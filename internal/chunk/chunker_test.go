package chunk

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFitsInOne(t *testing.T) {
	chunks := Chunk("short memory text", 500, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "short memory text", chunks[0].Content)
}

func TestChunkSplitsOnLineBoundaries(t *testing.T) {
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "line number "+strconv.Itoa(i)+" with some padding text to grow tokens")
	}
	text := strings.Join(lines, "\n")

	chunks := Chunk(text, 50, 10)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		for _, l := range lines {
			assert.NotContains(t, c.Content, l[:len(l)/2]+"XSPLITX")
		}
	}

	// indices dense starting at 0
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestChunkNeverSplitsInsideFence(t *testing.T) {
	var b strings.Builder
	b.WriteString("intro line\n")
	b.WriteString("```go\n")
	for i := 0; i < 100; i++ {
		b.WriteString("code line that is reasonably long to bust the budget quickly here\n")
	}
	b.WriteString("```\n")
	b.WriteString("outro line\n")

	chunks := Chunk(b.String(), 20, 5)
	for _, c := range chunks {
		fenceCount := strings.Count(c.Content, "```")
		assert.Equal(t, 0, fenceCount%2, "chunk must not end mid-fence")
	}
}

func TestChunkIndicesAreDenseAndOrdered(t *testing.T) {
	text := strings.Repeat("word ", 2000)
	chunks := Chunk(text, 30, 5)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestChunkEmptyOverlap(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, "line "+strconv.Itoa(i)+" padding padding padding")
	}
	chunks := Chunk(strings.Join(lines, "\n"), 20, 0)
	require.Greater(t, len(chunks), 1)
}
