package matcher

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// MatchStatus represents the status of a match operation
type MatchStatus int

const (
	Matched MatchStatus = iota
	Ambiguous
	Unmatched
)

func (s MatchStatus) String() string {
	switch s {
	case Matched:
		return "Matched"
	case Ambiguous:
		return "Ambiguous"
	case Unmatched:
		return "Unmatched"
	default:
		return "Unknown"
	}
}

// Item is an inventory item as seen by the matcher.
type Item struct {
	ID   uuid.UUID
	Name string
	Unit string
}

// MatchResult contains the result of a matching operation
type MatchResult struct {
	Status     MatchStatus
	Item       *Item  // when Matched
	Candidates []Item // when Ambiguous
}

// Matcher resolves free-text addon names against inventory item names.
// Legacy addons (no structured inventory linkage) carry only a display
// name like "Extra Cheese"; the matcher decides which stock record, if
// any, that name refers to.
type Matcher struct {
	items      []Item
	itemTokens [][]string // pre-tokenized names per item
}

// New creates a new Matcher with pre-tokenized item names.
func New(items []Item) *Matcher {
	m := &Matcher{
		items:      items,
		itemTokens: make([][]string, len(items)),
	}
	for i, item := range items {
		m.itemTokens[i] = tokenize(normalize(item.Name))
	}
	return m
}

// Match resolves text against the inventory list. An exact
// case-insensitive name match wins outright; otherwise items are scored
// by name-token overlap. A unique top score is Matched, a tie is
// Ambiguous, no overlap at all is Unmatched.
func (m *Matcher) Match(text string) MatchResult {
	normalized := normalize(text)
	if normalized == "" {
		return MatchResult{Status: Unmatched}
	}

	// Exact name match short-circuits scoring.
	for i := range m.items {
		if strings.Join(m.itemTokens[i], " ") == normalized {
			return MatchResult{Status: Matched, Item: &m.items[i]}
		}
	}

	inputTokens := make(map[string]bool)
	for _, tok := range tokenize(normalized) {
		inputTokens[tok] = true
	}

	type scoredItem struct {
		item  Item
		score int
	}

	var scored []scoredItem
	for i, item := range m.items {
		score := 0
		for _, tok := range m.itemTokens[i] {
			if inputTokens[tok] {
				score++
			}
		}
		// Every token of the item name must appear in the input;
		// "Cheese" matches "Extra Cheese" but "Cheddar Cheese" does not.
		if score > 0 && score == len(m.itemTokens[i]) {
			scored = append(scored, scoredItem{item: item, score: score})
		}
	}

	if len(scored) == 0 {
		return MatchResult{Status: Unmatched}
	}

	maxScore := 0
	for _, s := range scored {
		if s.score > maxScore {
			maxScore = s.score
		}
	}

	var topScorers []Item
	for _, s := range scored {
		if s.score == maxScore {
			topScorers = append(topScorers, s.item)
		}
	}

	if len(topScorers) == 1 {
		return MatchResult{
			Status: Matched,
			Item:   &topScorers[0],
		}
	}

	return MatchResult{
		Status:     Ambiguous,
		Candidates: topScorers,
	}
}

// normalize converts a string to lowercase and replaces non-alphanumeric chars with spaces
func normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

// tokenize splits a string on whitespace
func tokenize(s string) []string {
	return strings.Fields(s)
}
