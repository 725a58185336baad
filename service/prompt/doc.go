// Package prompt implements the pending question registry. When the
// execution loop needs user input it parks a question here, suspends the
// session and replies to the user; the registry matches the eventual reply
// with the question so the loop can resume.
package prompt
