// Package duckdb provides the embedded DuckDB source. DuckDB keeps the
// whole catalog in one file, so a single connection serves listing, DDL,
// and column fetches. Definition text comes from the duckdb_tables() and
// duckdb_views() table functions, which expose the original CREATE
// statement in their sql column.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb database/sql driver

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
	"github.com/wheelhouse-labs/wheelhouse/internal/source"
)

func init() {
	source.Register("duckdb", func(logger *slog.Logger) source.Source {
		return New(logger)
	})
}

// DuckDB implements source.Source against a DuckDB database file.
type DuckDB struct {
	logger   *slog.Logger
	database string
	db       *sql.DB
}

// New creates a DuckDB source. A nil logger logs nowhere.
func New(logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDB{logger: logger}
}

// Connect opens the database file named by cfg.Path. An empty path opens
// an in-memory database, which is only useful for tests.
func (d *DuckDB) Connect(ctx context.Context, cfg source.Config) error {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb database %q: %w", cfg.Path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	d.db = db

	// the logical database name is the file stem
	d.database = cfg.Database
	if d.database == "" {
		d.database = databaseName(cfg.Path)
	}
	d.logger.Debug("opened duckdb database", "path", cfg.Path, "database", d.database)
	return nil
}

// Close closes the database file.
func (d *DuckDB) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

const listQuery = `
	select
		table_schema,
		table_name,
		table_type
	from
		information_schema.tables
	where
		table_schema not in ('information_schema', 'pg_catalog')
	order by
		table_schema, table_name`

// ListObjects lists every table and view in the attached file.
func (d *DuckDB) ListObjects(ctx context.Context) ([]source.ListedObject, error) {
	rows, err := d.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list duckdb objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objects []source.ListedObject
	for rows.Next() {
		var schema, name, tableType string
		if err := rows.Scan(&schema, &name, &tableType); err != nil {
			return nil, fmt.Errorf("failed to scan object listing: %w", err)
		}
		objects = append(objects, source.ListedObject{
			Path: catalog.ObjectPath{Database: d.database, Schema: schema, Name: name},
			Kind: kindFromTableType(tableType),
		})
	}
	return objects, rows.Err()
}

const tableDDLQuery = `
	select sql from duckdb_tables()
	where schema_name = $1 and table_name = $2`

const viewDDLQuery = `
	select sql from duckdb_views()
	where schema_name = $1 and view_name = $2`

// FetchDDL returns the stored CREATE statement of one object.
func (d *DuckDB) FetchDDL(ctx context.Context, obj source.ListedObject) (string, error) {
	query := tableDDLQuery
	if obj.Kind == catalog.KindView || obj.Kind == catalog.KindMaterializedView {
		query = viewDDLQuery
	}

	var ddl sql.NullString
	err := d.db.QueryRowContext(ctx, query, obj.Path.Schema, obj.Path.Name).Scan(&ddl)
	if err != nil {
		return "", fmt.Errorf("failed to fetch ddl for %s: %w", obj.Path.String(), err)
	}
	return ddl.String, nil
}

const columnsQuery = `
	select
		column_name,
		data_type
	from
		information_schema.columns
	where
		table_schema = $1
		and table_name = $2
	order by
		ordinal_position`

// FetchColumns lists the object's columns in ordinal order.
func (d *DuckDB) FetchColumns(ctx context.Context, obj source.ListedObject) ([]catalog.Feature, error) {
	rows, err := d.db.QueryContext(ctx, columnsQuery, obj.Path.Schema, obj.Path.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns for %s: %w", obj.Path.String(), err)
	}
	defer func() { _ = rows.Close() }()

	var features []catalog.Feature
	for rows.Next() {
		var f catalog.Feature
		if err := rows.Scan(&f.Name, &f.DataType); err != nil {
			return nil, fmt.Errorf("failed to scan column for %s: %w", obj.Path.String(), err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func kindFromTableType(tableType string) catalog.ObjectKind {
	switch strings.ToUpper(strings.TrimSpace(tableType)) {
	case "VIEW":
		return catalog.KindView
	default:
		return catalog.KindTable
	}
}

// databaseName derives the logical database name from the file path,
// matching how DuckDB itself names an attached file.
func databaseName(path string) string {
	if path == "" {
		return "memory"
	}
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
