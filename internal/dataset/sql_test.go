package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"created_at", "segment", "amount", "ship_date"}).
		AddRow(created, []byte("retail"), int64(10), "2024-05-03").
		AddRow(created.AddDate(0, 1, 0), "wholesale", 12.5, nil)
	mock.ExpectQuery(`SELECT \* FROM sales LIMIT 100`).WillReturnRows(rows)

	ds, err := LoadSQL(context.Background(), db, "sales", Options{MaxRows: 100})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "sales", ds.Name)
	assert.Equal(t, 2, ds.Rows())

	c, _ := ds.Column("created_at")
	assert.Equal(t, KindDatetime, c.Kind)
	amt, _ := ds.Column("amount")
	assert.Equal(t, KindNumeric, amt.Kind)
	assert.Equal(t, []float64{10, 12.5}, amt.Floats())
	seg, _ := ds.Column("segment")
	assert.Equal(t, KindString, seg.Kind)
	assert.Equal(t, "retail", seg.Label(0))
	ship, _ := ds.Column("ship_date")
	assert.Equal(t, KindDatetime, ship.Kind)
	assert.True(t, ship.Missing(1))
}

func TestLoadSQLRejectsBadTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = LoadSQL(context.Background(), db, "sales; DROP TABLE x", Options{})
	require.Error(t, err)
}

func TestDriverFor(t *testing.T) {
	cases := []struct {
		src, driver, dsn string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx", "postgres://u:p@localhost:5432/db"},
		{"sqlite:///tmp/a.db", "sqlite", "/tmp/a.db"},
		{"snowflake://u:p@acct/db/public?warehouse=wh", "snowflake", "u:p@acct/db/public?warehouse=wh"},
	}
	for _, tc := range cases {
		d, dsn, err := driverFor(tc.src)
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.driver, d)
		assert.Equal(t, tc.dsn, dsn)
	}
	_, _, err := driverFor("mysql://x")
	require.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, IsSQLSource("data.csv"))
}

func TestLoadSQLiteViaRegistry(t *testing.T) {
	src := "sqlite://" + t.TempDir() + "/metrics.db"
	db, err := OpenSQL(src)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE metrics (region TEXT, value REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO metrics VALUES ('north', 1.5), ('south', 2.5)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ds, err := Load(context.Background(), src, Options{Table: "metrics"})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "value"}, ds.Columns())
	v, _ := ds.Column("value")
	assert.Equal(t, []float64{1.5, 2.5}, v.Floats())

	_, err = Load(context.Background(), src, Options{})
	require.Error(t, err)
}
