// Package utils holds small text helpers shared by the channels and
// command handlers.
package utils

import (
	"fmt"
	"strings"
)

// SplitMessage splits content into chunks of at most maxLen runes.
// It prefers to break at newlines or spaces, and keeps fenced code
// blocks valid by closing an open fence at the chunk end and reopening
// it (with its language header) at the start of the next chunk.
func SplitMessage(content string, maxLen int) []string {
	if content == "" {
		return nil
	}
	if maxLen <= 0 {
		return []string{content}
	}

	// Reserve room for a closing fence appended to a chunk.
	const fenceReserve = 4 // "\n```"

	var chunks []string
	runes := []rune(content)

	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}

		end := splitPoint(runes, maxLen-fenceReserve)
		chunk := runes[:end]

		openIdx := lastUnclosedFence(chunk)
		header := ""
		if openIdx >= 0 {
			header = fenceHeader(runes, openIdx)
		}
		// Reopening only makes progress when the chunk holds more than
		// the header it would prepend.
		if openIdx >= 0 && end > len([]rune(header))+1 {
			chunks = append(chunks, strings.TrimRight(string(chunk), " \t\r\n")+"\n```")
			rest := runes[end:]
			runes = append([]rune(header+"\n"), rest...)
		} else {
			chunks = append(chunks, string(chunk))
			runes = runes[end:]
		}

		// Drop leading whitespace carried over from the break point.
		for len(runes) > 0 && (runes[0] == ' ' || runes[0] == '\t' || runes[0] == '\n' || runes[0] == '\r') {
			runes = runes[1:]
		}
	}

	return chunks
}

// splitPoint picks where to cut a chunk of at most limit runes,
// searching backwards for a newline, then a space.
func splitPoint(runes []rune, limit int) int {
	if limit < 1 {
		limit = 1
	}
	window := limit / 4
	if window > 200 {
		window = 200
	}

	for i := limit - 1; i >= limit-window && i > 0; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := limit - 1; i >= limit-window && i > 0; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			return i + 1
		}
	}
	return limit
}

// lastUnclosedFence returns the index of the opening ``` of an
// unterminated code block, or -1 if all fences are balanced.
func lastUnclosedFence(runes []rune) int {
	open := -1
	inside := false
	for i := 0; i+2 < len(runes); i++ {
		if runes[i] == '`' && runes[i+1] == '`' && runes[i+2] == '`' {
			if !inside {
				open = i
			}
			inside = !inside
			i += 2
		}
	}
	if inside {
		return open
	}
	return -1
}

// fenceHeader returns the opening fence line (``` plus language tag)
// starting at openIdx.
func fenceHeader(runes []rune, openIdx int) string {
	end := openIdx
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	return strings.TrimSpace(string(runes[openIdx:end]))
}

// TruncateOutput caps s at max runes, appending a marker with the
// number of characters dropped.
func TruncateOutput(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max]) + fmt.Sprintf("\n... (%d more characters truncated)", len(runes)-max)
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
