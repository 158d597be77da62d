package repository

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
)

const dialectPostgres = "postgres"

// dialect builds prepared statements with $n placeholders.
var dialect = goqu.Dialect(dialectPostgres)
