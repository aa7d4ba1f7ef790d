package game

import (
	"fmt"
	"strings"
)

// ParseError describes map text that cannot become a Battlefield.
// Line and Column are 1-based and refer to the map rows after blank lines
// around the map have been dropped.
type ParseError struct {
	Line   int
	Column int
	Rune   rune
	Reason string
}

func (e *ParseError) Error() string {
	if e.Rune != 0 {
		return fmt.Sprintf("parse map: line %d col %d: %s %q", e.Line, e.Column, e.Reason, e.Rune)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse map: line %d: %s", e.Line, e.Reason)
	}
	return "parse map: " + e.Reason
}

// Parse builds a Battlefield from map text: '#' wall, '.' open floor, 'G' and
// 'E' spawn a full-health goblin or elf.
//
// Blank lines before and after the map are ignored, as are trailing spaces and
// carriage returns on each row. Every row must be as wide as the first.
func Parse(text string) (*Battlefield, error) {
	rows := mapRows(text)
	if len(rows) == 0 {
		return nil, &ParseError{Reason: "empty map"}
	}

	width := len([]rune(rows[0]))
	b := newBattlefield(width, len(rows))
	for y, row := range rows {
		runes := []rune(row)
		if len(runes) != width {
			return nil, &ParseError{
				Line:   y + 1,
				Reason: fmt.Sprintf("row is %d wide, want %d", len(runes), width),
			}
		}
		for x, r := range runes {
			t, ok := tileFromRune(r)
			if !ok {
				return nil, &ParseError{Line: y + 1, Column: x + 1, Rune: r, Reason: "unknown tile"}
			}
			b.tiles[y*width+x] = t
		}
	}
	return b, nil
}

// MustParse is Parse for maps known to be valid, such as test fixtures.
func MustParse(text string) *Battlefield {
	b, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return b
}

func mapRows(text string) []string {
	lines := strings.Split(text, "\n")
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, strings.TrimRight(line, " \t\r"))
	}
	for len(rows) > 0 && rows[0] == "" {
		rows = rows[1:]
	}
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	return rows
}
