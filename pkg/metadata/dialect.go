package metadata

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "modernc.org/sqlite"             // registers the "sqlite" database/sql driver
)

const (
	// DriverSQLite selects modernc.org/sqlite.
	DriverSQLite = "sqlite"
	// DriverPostgres selects PostgreSQL through pgx.
	DriverPostgres = "postgres"

	pgUniqueViolation = "23505"
	sqliteBusyTimeout = "busy_timeout(5000)"
)

type dialect struct {
	name       string
	sqlDriver  string
	positional bool // $1, $2 ... instead of ?
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return dialect{name: DriverSQLite, sqlDriver: "sqlite"}, nil
	case DriverPostgres:
		return dialect{name: DriverPostgres, sqlDriver: "pgx", positional: true}, nil
	default:
		return dialect{}, ErrUnsupportedDriver
	}
}

// dataSource adds per-connection settings to a SQLite path.
func (d dialect) dataSource(dsn string) string {
	if d.name != DriverSQLite {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + sqliteBusyTimeout
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isDuplicate reports whether err is a primary key violation.
func (d dialect) isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
