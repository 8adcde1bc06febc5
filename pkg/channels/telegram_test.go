package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelegramHTMLEscapes(t *testing.T) {
	assert.Equal(t, "1 &lt; 2 &amp;&amp; 3 &gt; 2", telegramHTML("1 < 2 && 3 > 2"))
}

func TestTelegramHTMLCodeFence(t *testing.T) {
	out := telegramHTML("before\n```go\nfmt.Println(\"<hi>\")\n```\nafter")
	assert.Contains(t, out, "<pre>fmt.Println(&#34;&lt;hi&gt;&#34;)</pre>")
	assert.Contains(t, out, "before")
	assert.Contains(t, out, "after")
}

func TestTelegramHTMLInlineCode(t *testing.T) {
	out := telegramHTML("run `ls -la` now")
	assert.Equal(t, "run <code>ls -la</code> now", out)
}
