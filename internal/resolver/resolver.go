package resolver

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed locations.json
var locationsData []byte

// Match is a resolved map coordinate for a building reference.
type Match struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Title     string  `json:"title,omitempty"`
}

// tableEntry is the locations.json wire format.
type tableEntry struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Title string  `json:"title"`
}

// Resolver maps building references to coordinates.
//
// The table is loaded once from the embedded dataset and never mutated;
// the Resolver is safe for concurrent use.
type Resolver struct {
	table map[string]Match

	// keys holds the original building keys in sorted order for stable
	// text scanning.
	keys []string
}

// New loads the embedded building table.
//
// Returns:
//   - *Resolver: Immutable resolver ready for lookups
//   - error: If the embedded dataset is malformed
func New() (*Resolver, error) {
	var raw map[string]tableEntry
	if err := json.Unmarshal(locationsData, &raw); err != nil {
		return nil, fmt.Errorf("parsing embedded locations table: %w", err)
	}

	r := &Resolver{
		table: make(map[string]Match, len(raw)),
	}

	for key, entry := range raw {
		title := entry.Title
		if title == "" {
			title = key
		}
		r.table[normaliseKey(key)] = Match{
			Latitude:  entry.Lat,
			Longitude: entry.Lng,
			Title:     title,
		}
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)

	return r, nil
}

// normaliseKey canonicalises a building key for lookup.
func normaliseKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Len returns the number of known buildings.
func (r *Resolver) Len() int {
	return len(r.table)
}

// ResolveExact looks up a literal building key.
//
// The key is the first path segment of a sectioned room code: for
// "A22/104" the key is "A22". Lookup is case-insensitive.
//
// Returns:
//   - Match: The stored coordinate
//   - bool: false when the key is unknown
func (r *Resolver) ResolveExact(key string) (Match, bool) {
	match, ok := r.table[normaliseKey(key)]
	return match, ok
}

// ResolveInText scans free text for known building references.
//
// Every recognisable building substring produces a match, in order of
// first occurrence in the text, deduplicated by coordinate pair.
func (r *Resolver) ResolveInText(text string) []Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	type hit struct {
		index int
		key   string
	}

	var hits []hit
	for _, key := range r.keys {
		index := indexToken(text, key)
		if index < 0 {
			continue
		}
		hits = append(hits, hit{index: index, key: key})
	}

	// Order of first occurrence; key order breaks ties deterministically.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].index != hits[j].index {
			return hits[i].index < hits[j].index
		}
		return hits[i].key < hits[j].key
	})

	type coord struct{ lat, lng float64 }
	seen := make(map[coord]bool)
	var matches []Match
	for _, h := range hits {
		match := r.table[normaliseKey(h.key)]
		c := coord{match.Latitude, match.Longitude}
		if seen[c] {
			continue
		}
		seen[c] = true
		matches = append(matches, match)
	}

	return matches
}

// indexToken finds the first whole-word, case-insensitive occurrence of
// token in text, returning -1 when absent. Word boundaries are checked on
// runes so that "A2" does not fire inside "A22".
func indexToken(text, token string) int {
	lowerText := strings.ToLower(text)
	lowerToken := strings.ToLower(token)

	offset := 0
	for {
		i := strings.Index(lowerText[offset:], lowerToken)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(lowerToken)

		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return start
		}
		offset = start + 1
	}
}

// boundaryBefore reports whether position start sits after a non-word rune
// (or the start of the text).
func boundaryBefore(text string, start int) bool {
	if start == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:start])
	return !isWordRune(prev)
}

// boundaryAfter reports whether position end sits before a non-word rune
// (or the end of the text).
func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(next)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ResolveRoom resolves a course's room description to coordinates.
//
// Policy: exact match on the parsed room token first; then the full room
// line as free text; then the subject line as a last resort. The first
// non-empty result set wins - later fallbacks are never merged into
// earlier empty attempts.
func (r *Resolver) ResolveRoom(roomLine, subject string) []Match {
	roomLine = strings.TrimSpace(roomLine)
	if roomLine != "" {
		token, _, _ := strings.Cut(roomLine, "/")
		if match, ok := r.ResolveExact(token); ok {
			return []Match{match}
		}
		if matches := r.ResolveInText(roomLine); len(matches) > 0 {
			return matches
		}
	}

	return r.ResolveInText(subject)
}
