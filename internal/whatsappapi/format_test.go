package whatsappapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText_UnderLimitReturnsWhole(t *testing.T) {
	chunks := ChunkText("hello world", 100)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkText_SplitsOversizedTextWithinLimit(t *testing.T) {
	text := strings.Repeat("word ", 2000)
	chunks := ChunkText(text, 100)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}
	// Chunks must concatenate back to exactly the original text: no
	// boundary whitespace may be dropped.
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkText_PrefersNewlineSplit(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n" + strings.Repeat("b", 40)
	chunks := ChunkText(text, 45)
	require := assert.New(t)
	require.Len(chunks, 2)
	require.Equal(strings.Repeat("a", 40), chunks[0])
	require.Equal("\n"+strings.Repeat("b", 40), chunks[1])
	require.Equal(text, strings.Join(chunks, ""))
}

func TestMarkdownToWhatsApp_ConvertsBoldAndHeadings(t *testing.T) {
	out := MarkdownToWhatsApp("# Title\n**important**")
	assert.Contains(t, out, "*Title*")
	assert.Contains(t, out, "*important*")
}

func TestMarkdownToWhatsApp_ConvertsBullets(t *testing.T) {
	out := MarkdownToWhatsApp("- one\n- two")
	assert.Equal(t, "• one\n• two", out)
}
