package shellparse

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	segmentCode
	andCode
	wordCode
	identifierCode
	assignCode
	restCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	segmentToken    = parsly.NewToken(segmentCode, "Segment", newSegmentMatcher())
	andToken        = parsly.NewToken(andCode, "&&", newAndMatcher())
	wordToken       = parsly.NewToken(wordCode, "Word", newWordMatcher())
	identifierToken = parsly.NewToken(identifierCode, "Identifier", newIdentifierMatcher())
	assignToken     = parsly.NewToken(assignCode, "=", matcher.NewByte('='))
	restToken       = parsly.NewToken(restCode, "Rest", newRestMatcher())
)

// Custom matchers
func newSegmentMatcher() parsly.Matcher {
	return &segmentMatcher{}
}

func newAndMatcher() parsly.Matcher {
	return &andMatcher{}
}

func newWordMatcher() parsly.Matcher {
	return &wordMatcher{}
}

func newIdentifierMatcher() parsly.Matcher {
	return &identifierMatcher{}
}

func newRestMatcher() parsly.Matcher {
	return &restMatcher{}
}

// segmentMatcher matches command text up to a top-level '&&', honoring
// single and double quotes
type segmentMatcher struct{}

func (m *segmentMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	matched := 0
	var quote byte
	for i := pos; i < size; i++ {
		c := input[i]
		if quote != 0 {
			if c == quote && input[i-1] != '\\' {
				quote = 0
			}
			matched++
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '&':
			if i+1 < size && input[i+1] == '&' {
				return matched
			}
		}
		matched++
	}
	return matched
}

// andMatcher matches the '&&' separator
type andMatcher struct{}

func (m *andMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos+1 < cursor.InputSize && input[pos] == '&' && input[pos+1] == '&' {
		return 2
	}
	return 0
}

// wordMatcher matches a run of non-whitespace characters
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	matched := 0
	for i := pos; i < size; i++ {
		if isSpace(input[i]) {
			break
		}
		matched++
	}
	return matched
}

// identifierMatcher matches shell variable names
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	// First character must be a letter or underscore
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' {
			matched++
			continue
		}
		break
	}
	return matched
}

// restMatcher matches everything up to the end of input
type restMatcher struct{}

func (m *restMatcher) Match(cursor *parsly.Cursor) int {
	if cursor.Pos >= cursor.InputSize {
		return 0
	}
	return cursor.InputSize - cursor.Pos
}

// Helper functions
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
