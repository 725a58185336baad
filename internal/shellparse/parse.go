// Package shellparse inspects command lines so that session state can follow
// directory changes and environment exports without a remote round trip. It
// recognizes just enough shell syntax for that purpose; anything ambiguous is
// reported as not foldable rather than guessed.
package shellparse

import (
	"strings"

	"github.com/viant/parsly"
)

// Segments splits a compound command on top-level '&&' separators, keeping
// quoted separators intact. Empty segments are dropped.
func Segments(command string) []string {
	cursor := parsly.NewCursor("", []byte(command), 0)
	var segments []string
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(andToken, segmentToken)
		switch matched.Code {
		case andToken.Code:
			continue
		case segmentToken.Code:
			if text := strings.TrimSpace(matched.Text(cursor)); text != "" {
				segments = append(segments, text)
			}
		default:
			return segments
		}
	}
	return segments
}

// Chdir reports whether the command is a directory change and returns the
// target. A bare `cd` resolves to the home directory; `cd -` is not foldable
// since the previous directory is unknown here.
func Chdir(command string) (string, bool) {
	cursor := parsly.NewCursor("", []byte(command), 0)
	matched := cursor.MatchAfterOptional(whitespaceToken, wordToken)
	if matched.Code != wordToken.Code || matched.Text(cursor) != "cd" {
		return "", false
	}
	matched = cursor.MatchAfterOptional(whitespaceToken, restToken)
	if matched.Code != restToken.Code {
		return "~", true
	}
	target := unquote(strings.TrimSpace(matched.Text(cursor)))
	if target == "" {
		return "~", true
	}
	if target == "-" {
		return "", false
	}
	return target, true
}

// Export reports whether the command persists an environment variable, either
// `export NAME=VALUE` or a bare `NAME=VALUE` assignment. An assignment
// followed by a command (`NAME=VALUE make`) scopes the variable to that
// command only and is not an export.
func Export(command string) (string, string, bool) {
	cursor := parsly.NewCursor("", []byte(command), 0)
	matched := cursor.MatchAfterOptional(whitespaceToken, identifierToken)
	if matched.Code != identifierToken.Code {
		return "", "", false
	}
	name := matched.Text(cursor)
	if name == "export" {
		matched = cursor.MatchAfterOptional(whitespaceToken, identifierToken)
		if matched.Code != identifierToken.Code {
			return "", "", false
		}
		name = matched.Text(cursor)
	}
	matched = cursor.MatchOne(assignToken)
	if matched.Code != assignToken.Code {
		return "", "", false
	}
	raw := ""
	matched = cursor.MatchOne(restToken)
	if matched.Code == restToken.Code {
		raw = strings.TrimSpace(matched.Text(cursor))
	}
	if !quoted(raw) && strings.ContainsAny(raw, " \t") {
		return "", "", false
	}
	return name, unquote(raw), true
}

func quoted(text string) bool {
	if len(text) < 2 {
		return false
	}
	return (text[0] == '\'' && text[len(text)-1] == '\'') ||
		(text[0] == '"' && text[len(text)-1] == '"')
}

func unquote(text string) string {
	if quoted(text) {
		return text[1 : len(text)-1]
	}
	return text
}
