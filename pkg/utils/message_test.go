package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageShort(t *testing.T) {
	assert.Nil(t, SplitMessage("", 100))
	assert.Equal(t, []string{"hello"}, SplitMessage("hello", 100))
}

func TestSplitMessageRuneSafe(t *testing.T) {
	// 30 four-byte runes; a byte-based split would cut one in half.
	content := strings.Repeat("😀", 30)
	chunks := SplitMessage(content, 10)
	require.Greater(t, len(chunks), 1)

	var total int
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 10)
		total += len([]rune(c))
	}
	assert.Equal(t, 30, total)
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	content := "first line\nsecond line\nthird line that makes this long enough"
	chunks := SplitMessage(content, 30)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "first line\nsecond line", strings.TrimRight(chunks[0], "\n"))
}

func TestSplitMessageClosesCodeFence(t *testing.T) {
	body := strings.Repeat("line of code\n", 30)
	content := "```go\n" + body + "```"
	chunks := SplitMessage(content, 120)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.Equal(t, 0, strings.Count(c, "```")%2, "chunk has unbalanced fences: %q", c)
	}
	// Continuation chunks reopen with the language header.
	assert.True(t, strings.HasPrefix(chunks[1], "```go\n"))
}

func TestSplitMessageTinyLimitTerminates(t *testing.T) {
	// A limit barely wider than the fence header must not loop forever
	// re-prepending the header; the fence is left unbalanced instead.
	content := "```go\n" + strings.Repeat("abcdefgh", 10)
	chunks := SplitMessage(content, 8)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 8)
	}
	assert.Contains(t, strings.Join(chunks, ""), "abcdefgh")
}

func TestTruncateOutput(t *testing.T) {
	assert.Equal(t, "short", TruncateOutput("short", 100))

	out := TruncateOutput(strings.Repeat("x", 200), 50)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("x", 50)))
	assert.Contains(t, out, "150 more characters truncated")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 MB", FormatBytes(1536*1024))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
}
