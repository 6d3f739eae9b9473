package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"     // Postgres driver ("pgx")
	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver
	_ "modernc.org/sqlite"                 // SQLite driver
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// IsSQLSource reports whether src is a DSN handled by OpenSQL.
func IsSQLSource(src string) bool {
	_, _, err := driverFor(src)
	return err == nil
}

// driverFor maps a DSN scheme to a registered database/sql driver and the DSN it expects.
func driverFor(src string) (driver, dsn string, err error) {
	scheme, rest, ok := strings.Cut(src, "://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a database URL", ErrUnsupported, src)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return "pgx", src, nil
	case "sqlite", "sqlite3":
		return "sqlite", rest, nil
	case "snowflake":
		// user:password@account/database/schema?warehouse=xxx
		return "snowflake", rest, nil
	default:
		return "", "", fmt.Errorf("%w: database scheme %q", ErrUnsupported, scheme)
	}
}

// OpenSQL opens a pooled connection for a postgres://, sqlite:// or snowflake:// DSN.
func OpenSQL(src string) (*sql.DB, error) {
	driver, dsn, err := driverFor(src)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// LoadSQL reads every row of table into a dataset. Timestamp columns stay datetime;
// everything else goes through the same inference as file sources.
func LoadSQL(ctx context.Context, db *sql.DB, table string, opt Options) (*Dataset, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	q := "SELECT * FROM " + table
	if opt.MaxRows > 0 {
		q += " LIMIT " + strconv.Itoa(opt.MaxRows)
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	raw := make([][]any, len(names))
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for i, v := range vals {
			raw[i] = append(raw[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", table, err)
	}

	names = uniqueNames(names)
	cols := make([]*Column, len(names))
	for i, n := range names {
		cols[i] = sqlColumn(n, raw[i], opt)
	}
	return New(table, cols...)
}

func sqlColumn(name string, vals []any, opt Options) *Column {
	allTime, present := true, 0
	for _, v := range vals {
		if v == nil {
			continue
		}
		present++
		if _, ok := v.(time.Time); !ok {
			allTime = false
		}
	}
	if allTime && present > 0 {
		ts := make([]time.Time, len(vals))
		for i, v := range vals {
			if t, ok := v.(time.Time); ok {
				ts[i] = t
			}
		}
		return NewTimeColumn(name, ts)
	}
	cells := make([]string, len(vals))
	for i, v := range vals {
		cells[i] = sqlText(v)
	}
	return inferColumn(name, cells, opt)
}

func sqlText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
