// Package mention finds @-queries under the compose cursor and splices
// expert mentions into text. All offsets are rune offsets.
package mention

import (
	"regexp"
	"strings"
)

// Candidate is one entry of the mention roster. ID is what gets inserted.
type Candidate struct {
	ID    string
	Label string
}

// Query is the word being typed after an @. Start is the offset of the @.
type Query struct {
	Text  string
	Start int
}

var tokenPattern = regexp.MustCompile(`(?:^|[^\w])@(\w+)`)

func isWord(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ActiveQuery reports the @-query ending at cursor, if any. "hello @ali"
// with the cursor at the end yields "ali"; a trailing space yields nothing.
func ActiveQuery(text string, cursor int) (Query, bool) {
	runes := []rune(text)
	cursor = clamp(cursor, 0, len(runes))
	i := cursor
	for i > 0 && isWord(runes[i-1]) {
		i--
	}
	if i == 0 || runes[i-1] != '@' {
		return Query{}, false
	}
	return Query{Text: string(runes[i:cursor]), Start: i - 1}, true
}

// Filter keeps candidates whose id or label contains query, ignoring case.
func Filter(roster []Candidate, query string) []Candidate {
	needle := strings.ToLower(query)
	out := make([]Candidate, 0, len(roster))
	for _, c := range roster {
		if needle == "" ||
			strings.Contains(strings.ToLower(c.ID), needle) ||
			strings.Contains(strings.ToLower(c.Label), needle) {
			out = append(out, c)
		}
	}
	return out
}

// Insert replaces [start, cursor) with "@<id> " and returns the new text and
// the cursor just after the inserted space.
func Insert(text string, start, cursor int, c Candidate) (string, int) {
	runes := []rune(text)
	cursor = clamp(cursor, 0, len(runes))
	start = clamp(start, 0, cursor)
	token := []rune("@" + c.ID + " ")

	out := make([]rune, 0, len(runes)-(cursor-start)+len(token))
	out = append(out, runes[:start]...)
	out = append(out, token...)
	out = append(out, runes[cursor:]...)
	return string(out), start + len(token)
}

// FirstResolved returns the first @token in body that names a roster id.
func FirstResolved(body string, roster []Candidate) (Candidate, bool) {
	if len(roster) == 0 {
		return Candidate{}, false
	}
	byID := make(map[string]Candidate, len(roster))
	for _, c := range roster {
		byID[c.ID] = c
	}
	for _, match := range tokenPattern.FindAllStringSubmatch(body, -1) {
		if c, ok := byID[match[1]]; ok {
			return c, true
		}
	}
	return Candidate{}, false
}

// Extract lists the distinct mentioned names, lowercased, in order.
func Extract(body string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, match := range tokenPattern.FindAllStringSubmatch(body, -1) {
		name := strings.ToLower(match[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
