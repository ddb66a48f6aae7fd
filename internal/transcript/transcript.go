// Package transcript splits a discussion transcript into per-round,
// per-speaker turns.
package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// headingPattern matches a section heading at the start of a line. Either the
// legacy localized round marker or the English one may appear.
var headingPattern = regexp.MustCompile(`(?m)^## (?:第\s*(\d+)\s*轮|(?i:round)\s+(\d+)) - (.+)$`)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Turn is one speaker's contribution within one round.
type Turn struct {
	Round   int
	Speaker string
	Body    string
	// ID is round-<round>-<speaker key>. Two turns by the same speaker in
	// the same round share it; use Key for a unique value.
	ID string

	ordinal int
}

// Key is ID for the first turn carrying it and ID#n for the n-th repeat.
func (t Turn) Key() string {
	if t.ordinal <= 1 {
		return t.ID
	}
	return t.ID + "#" + strconv.Itoa(t.ordinal)
}

// Parse never fails. A transcript with no headings yields no turns and the
// caller should show the raw text instead.
func Parse(text string) []Turn {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	matches := headingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	turns := make([]Turn, 0, len(matches))
	seen := map[string]int{}
	for i, match := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		round := roundNumber(text, match)
		if round < 1 {
			continue
		}
		body := trimBody(text[match[1]:end])
		if body == "" {
			continue
		}
		speaker := strings.TrimSpace(text[match[6]:match[7]])
		turn := Turn{
			Round:   round,
			Speaker: speaker,
			Body:    body,
			ID:      fmt.Sprintf("round-%d-%s", round, SpeakerKey(speaker)),
		}
		seen[turn.ID]++
		turn.ordinal = seen[turn.ID]
		turns = append(turns, turn)
	}
	return turns
}

func roundNumber(text string, match []int) int {
	for _, group := range []int{2, 4} {
		if match[group] < 0 {
			continue
		}
		n, err := strconv.Atoi(text[match[group]:match[group+1]])
		if err == nil {
			return n
		}
	}
	return 0
}

// trimBody drops surrounding whitespace and one trailing rule line.
func trimBody(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	lastBreak := strings.LastIndexByte(body, '\n')
	last := strings.TrimSpace(body[lastBreak+1:])
	if isRule(last) {
		if lastBreak < 0 {
			return ""
		}
		body = strings.TrimSpace(body[:lastBreak])
	}
	return body
}

func isRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	first := line[0]
	if first != '-' && first != '*' && first != '_' {
		return false
	}
	return strings.Count(line, string(first)) == len(line)
}

var knownRoles = []struct {
	marker string
	key    string
}{
	{"物理", "physicist"},
	{"生物", "biologist"},
	{"计算机", "computer_scientist"},
	{"伦理", "ethicist"},
	{"主持", "moderator"},
}

// SpeakerKey normalizes a speaker label into a stable slug.
func SpeakerKey(label string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(label), "-"), "-")
	if slug != "" {
		return slug
	}
	for _, role := range knownRoles {
		if strings.Contains(label, role.marker) {
			return role.key
		}
	}
	return "speaker"
}

// Format renders turns back into the English heading dialect.
func Format(turns []Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "## Round %d - %s\n%s\n\n---\n", turn.Round, turn.Speaker, turn.Body)
	}
	return b.String()
}

// Round groups the turns of one round, in transcript order.
type Round struct {
	Number int
	Turns  []Turn
}

// GroupByRound buckets turns by round number. Rounds appear in the order
// they are first seen.
func GroupByRound(turns []Turn) []Round {
	rounds := []Round{}
	index := map[int]int{}
	for _, turn := range turns {
		pos, ok := index[turn.Round]
		if !ok {
			pos = len(rounds)
			index[turn.Round] = pos
			rounds = append(rounds, Round{Number: turn.Round})
		}
		rounds[pos].Turns = append(rounds[pos].Turns, turn)
	}
	return rounds
}
