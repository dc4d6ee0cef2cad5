package intent

import (
	"strconv"
	"strings"

	"github.com/wallybot/wally-agent/internal/domain"
)

// Keyword tables for the deterministic fallback. Rules are checked in order:
// reorder wins over everything so that "reorder and add milk"-style phrasing
// still expands from history rather than shopping the literal words.
var (
	reorderKeywords = []string{"usual", "reorder", "again", "last order", "previous order", "same as last time"}
	addKeywords     = []string{"add", "order", "get", "need", "want", "buy"}
	listKeywords    = []string{"history", "show", "what did i", "list my orders", "previous orders"}
)

// fallbackParse classifies a command with ordered keyword rules and a naive
// comma/"and" split. It is pure and dependency-free: this is the availability
// guarantee of the pipeline when the remote model is down, trading recall for
// bounded-time certainty.
func fallbackParse(command string) domain.Intent {
	lowered := strings.ToLower(strings.TrimSpace(command))
	if lowered == "" {
		return domain.Intent{Type: domain.IntentUnknown}
	}

	if containsAny(lowered, reorderKeywords) {
		return domain.Intent{Type: domain.IntentReorder}
	}

	if kw, ok := firstKeyword(lowered, addKeywords); ok {
		items := splitItems(afterKeyword(lowered, kw))
		if len(items) > 0 {
			return domain.Intent{Type: domain.IntentAddItems, Items: items}
		}
		// "add" with nothing after it falls through to the list check, so
		// "what did I order" is not mistaken for an empty add.
	}

	if containsAny(lowered, listKeywords) {
		return domain.Intent{Type: domain.IntentListItems}
	}

	return domain.Intent{Type: domain.IntentUnknown}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWord(s, kw) {
			return true
		}
	}
	return false
}

func firstKeyword(s string, keywords []string) (string, bool) {
	best := -1
	var found string
	for _, kw := range keywords {
		if idx := indexWord(s, kw); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			found = kw
		}
	}
	return found, best >= 0
}

// containsWord matches kw on word boundaries so "order" does not fire
// inside "reorder".
func containsWord(s, kw string) bool {
	return indexWord(s, kw) >= 0
}

func indexWord(s, kw string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], kw)
		if idx < 0 {
			return -1
		}
		idx += from
		beforeOK := idx == 0 || !isWordChar(s[idx-1])
		end := idx + len(kw)
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return idx
		}
		from = idx + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func afterKeyword(s, kw string) string {
	idx := indexWord(s, kw)
	if idx < 0 {
		return ""
	}
	return s[idx+len(kw):]
}

// splitItems does the naive comma/"and" split, pulling a leading numeral into
// the quantity ("2 rice" -> 2x rice) and defaulting to 1 otherwise.
func splitItems(s string) []domain.ItemRequest {
	s = strings.ReplaceAll(s, " and ", ",")
	parts := strings.Split(s, ",")

	var items []domain.ItemRequest
	for _, part := range parts {
		name := strings.TrimSpace(part)
		name = strings.TrimPrefix(name, "a ")
		name = strings.TrimPrefix(name, "an ")
		name = strings.TrimPrefix(name, "some ")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		quantity := 1
		if first, rest, ok := strings.Cut(name, " "); ok {
			if n, err := strconv.Atoi(first); err == nil && n > 0 {
				quantity = n
				name = strings.TrimSpace(rest)
			}
		}
		if name == "" {
			continue
		}

		items = append(items, domain.ItemRequest{Name: name, Quantity: quantity})
	}
	return items
}
