package notifier

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	// DefaultMaxPayload is Telegram's message limit in UTF-16 code units
	DefaultMaxPayload = 4096

	// EmptyText replaces an empty or blank response
	EmptyText = "⚠️ 응답이 비어있습니다."
)

// -----------------------------------------------------------------------------

// unitLen is the length of s in UTF-16 code units
func unitLen(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func partPrefix(i, n int) string {
	return fmt.Sprintf("[%d/%d]\n", i, n)
}

// -----------------------------------------------------------------------------

// SplitMessage cuts text into parts of at most limit UTF-16 units. Text that
// fits is returned as is. Longer text is split at the last line break that
// fits, or hard cut when a line is too long, and every part is prefixed with
// "[i/N]\n" inside the limit.
func SplitMessage(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{EmptyText}
	}
	if limit <= 0 {
		limit = DefaultMaxPayload
	}
	if unitLen(text) <= limit {
		return []string{text}
	}

	runes := []rune(text)

	// The prefix width depends on the part count; grow the guess until the
	// count's digits fit the reserved prefix.
	guess := 9
	for {
		budget := limit - len(partPrefix(guess, guess))
		if budget < 1 {
			budget = 1
		}
		chunks := chunkRunes(runes, budget)
		if len(chunks) <= guess {
			out := make([]string, len(chunks))
			for i, c := range chunks {
				out[i] = partPrefix(i+1, len(chunks)) + c
			}
			return out
		}
		guess = guess*10 + 9
	}
}

// -----------------------------------------------------------------------------

func chunkRunes(runes []rune, budget int) []string {
	var chunks []string
	start := 0

	for start < len(runes) {
		end, units := start, 0
		for end < len(runes) && units+runeUnits(runes[end]) <= budget {
			units += runeUnits(runes[end])
			end++
		}
		if end == start {
			// A single rune wider than the budget
			end = start + 1
		}

		if end == len(runes) {
			chunks = append(chunks, string(runes[start:end]))
			break
		}

		cut := -1
		for i := end; i > start; i-- {
			if i < len(runes) && runes[i] == '\n' {
				cut = i
				break
			}
		}

		if cut > start {
			chunks = append(chunks, string(runes[start:cut]))
			start = cut + 1
			continue
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end
	}
	return chunks
}
