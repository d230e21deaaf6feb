package search

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned for blank questions.
var ErrEmptyQuery = errors.New("query is empty")

// ProcessQuery trims and collapses whitespace in a question.
func ProcessQuery(query string) (string, error) {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}
