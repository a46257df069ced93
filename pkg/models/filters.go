package models

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pagination bounds for list endpoints
const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

// NormalizePage clamps page/limit to sane bounds
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// searchClause builds a case-insensitive $or match of the search term over fields.
// The term is regex-escaped so user input is matched literally.
func searchClause(term string, fields ...string) bson.A {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	clauses := make(bson.A, len(fields))
	for i, f := range fields {
		clauses[i] = bson.M{f: pattern}
	}
	return clauses
}
