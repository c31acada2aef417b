package redshift

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
	"github.com/wheelhouse-labs/wheelhouse/internal/source"
)

// newMocked returns a Redshift source with a mocked connection registered
// for each named database, bypassing Connect.
func newMocked(t *testing.T, databases ...string) (*Redshift, map[string]sqlmock.Sqlmock) {
	t.Helper()
	r := New(nil)
	r.cfg = source.Config{Database: databases[0]}

	mocks := make(map[string]sqlmock.Sqlmock, len(databases))
	for _, name := range databases {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		r.conns[name] = db
		mocks[name] = mock
	}
	return r, mocks
}

func TestBuildDSN(t *testing.T) {
	cfg := source.Config{
		Host:     "cluster.example.com",
		Port:     5439,
		User:     "loader",
		Password: "secret",
		SSLMode:  "require",
	}

	dsn := buildDSN(cfg, "analytics")
	assert.Equal(t, "host=cluster.example.com port=5439 dbname=analytics sslmode=require user=loader password=secret", dsn)
}

func TestBuildDSN_Defaults(t *testing.T) {
	dsn := buildDSN(source.Config{}, "dev")
	assert.Equal(t, "host=localhost port=5439 dbname=dev sslmode=require", dsn)
}

func TestKindFromTableType(t *testing.T) {
	assert.Equal(t, catalog.KindView, kindFromTableType("VIEW"))
	assert.Equal(t, catalog.KindView, kindFromTableType(" view "))
	assert.Equal(t, catalog.KindExternalTable, kindFromTableType("EXTERNAL TABLE"))
	assert.Equal(t, catalog.KindTable, kindFromTableType("TABLE"))
	assert.Equal(t, catalog.KindTable, kindFromTableType("BASE TABLE"))
}

func TestShowKind(t *testing.T) {
	assert.Equal(t, "table", showKind(catalog.KindTable))
	assert.Equal(t, "view", showKind(catalog.KindView))
	assert.Equal(t, "view", showKind(catalog.KindMaterializedView))
	assert.Equal(t, "external table", showKind(catalog.KindExternalTable))
	assert.Equal(t, "procedure", showKind(catalog.KindProcedure))
}

func TestSampleQueryFor(t *testing.T) {
	obj := source.ListedObject{
		Path: catalog.ObjectPath{Database: "db", Schema: "sc", Name: "orders"},
	}
	got := sampleQueryFor("select * from {object} limit 1", obj)
	assert.Equal(t, "select * from sc.orders limit 1", got)
}

func TestListObjects(t *testing.T) {
	r, mocks := newMocked(t, "dev", "prod")

	tables := sqlmock.NewRows([]string{"database_name", "schema_name", "table_name", "table_type"}).
		AddRow("dev", "sc", "orders", "TABLE").
		AddRow("dev", "sc", "daily", "VIEW").
		AddRow("prod", "ext", "events", "EXTERNAL TABLE")
	mocks["dev"].ExpectQuery("svv_all_tables").WillReturnRows(tables)

	mocks["dev"].ExpectQuery("pg_proc").WillReturnRows(
		sqlmock.NewRows([]string{"nspname", "proname"}).AddRow("sc", "do_load"))
	// a database the user cannot query procedures on is skipped, not fatal
	mocks["prod"].ExpectQuery("pg_proc").WillReturnError(assert.AnError)

	objects, err := r.ListObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 4)

	assert.Equal(t, catalog.ObjectPath{Database: "dev", Schema: "sc", Name: "orders"}, objects[0].Path)
	assert.Equal(t, catalog.KindTable, objects[0].Kind)
	assert.Equal(t, catalog.KindView, objects[1].Kind)
	assert.Equal(t, catalog.KindExternalTable, objects[2].Kind)

	proc := objects[3]
	assert.Equal(t, catalog.ObjectPath{Database: "dev", Schema: "sc", Name: "do_load"}, proc.Path)
	assert.Equal(t, catalog.KindProcedure, proc.Kind)
}

func TestFetchDDL(t *testing.T) {
	r, mocks := newMocked(t, "dev")

	mocks["dev"].ExpectQuery("show view sc.daily").WillReturnRows(
		sqlmock.NewRows([]string{"ddl"}).AddRow("CREATE VIEW sc.daily AS SELECT 1"))

	obj := source.ListedObject{
		Path: catalog.ObjectPath{Database: "dev", Schema: "sc", Name: "daily"},
		Kind: catalog.KindView,
	}
	ddl, err := r.FetchDDL(context.Background(), obj)
	require.NoError(t, err)
	assert.Equal(t, "CREATE VIEW sc.daily AS SELECT 1", ddl)
}

func TestFetchColumns(t *testing.T) {
	r, mocks := newMocked(t, "dev")

	mocks["dev"].ExpectQuery("svv_all_columns").
		WithArgs("dev", "sc", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer").
			AddRow("amount", "numeric(10,2)"))

	obj := source.ListedObject{
		Path: catalog.ObjectPath{Database: "dev", Schema: "sc", Name: "orders"},
		Kind: catalog.KindTable,
	}
	features, err := r.FetchColumns(context.Background(), obj)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, catalog.Feature{Name: "id", DataType: "integer"}, features[0])
	assert.Equal(t, catalog.Feature{Name: "amount", DataType: "numeric(10,2)"}, features[1])
}

func TestFetchColumns_Samples(t *testing.T) {
	r, mocks := newMocked(t, "dev")
	r.sampleSQL = "select * from {object} limit 1"

	mocks["dev"].ExpectQuery("svv_all_columns").
		WithArgs("dev", "sc", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer").
			AddRow("note", "varchar"))

	// sample columns match by name case-insensitively; NULLs leave the
	// feature without a sample
	mocks["dev"].ExpectQuery("from sc.orders limit 1").WillReturnRows(
		sqlmock.NewRows([]string{"ID", "note"}).AddRow("42", nil))

	obj := source.ListedObject{
		Path: catalog.ObjectPath{Database: "dev", Schema: "sc", Name: "orders"},
		Kind: catalog.KindTable,
	}
	features, err := r.FetchColumns(context.Background(), obj)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "42", features[0].Sample)
	assert.Empty(t, features[1].Sample)
}

func TestFetchColumns_SampleFailureTolerated(t *testing.T) {
	r, mocks := newMocked(t, "dev")
	r.sampleSQL = "select * from {object} limit 1"

	mocks["dev"].ExpectQuery("svv_all_columns").
		WithArgs("dev", "sc", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "integer"))
	mocks["dev"].ExpectQuery("from sc.orders limit 1").WillReturnError(assert.AnError)

	obj := source.ListedObject{
		Path: catalog.ObjectPath{Database: "dev", Schema: "sc", Name: "orders"},
		Kind: catalog.KindTable,
	}
	features, err := r.FetchColumns(context.Background(), obj)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Empty(t, features[0].Sample)
}

func TestRegistered(t *testing.T) {
	factory, ok := source.Get("redshift")
	assert.True(t, ok)
	assert.NotNil(t, factory)
}
