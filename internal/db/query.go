package db

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// Dialect builds Postgres statements with $n placeholders, for the list
// queries whose filters are optional.
var Dialect = goqu.Dialect("postgres")

// Page clamps list paging to the default 20 / max 100 window.
func Page(limit, offset int) (uint, uint) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return uint(limit), uint(offset)
}
