package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry query into one the target driver accepts:
// "LIMIT ?,?" becomes "LIMIT ? OFFSET ?" and placeholders are rebound.
func Finalize(bindType int, query string, args []interface{}) (string, []interface{}) {
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	if bindType == sqlx.UNKNOWN {
		bindType = sqlx.QUESTION
	}
	return sqlx.Rebind(bindType, query), args
}
