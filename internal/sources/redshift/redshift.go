// Package redshift provides the Redshift warehouse source. Listing uses
// the cross-database svv_all_tables and per-database pg_proc catalogs; DDL
// comes from SHOW statements, which must run on a connection to the
// object's own database, so connections are opened lazily per database.
package redshift

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
	"github.com/wheelhouse-labs/wheelhouse/internal/source"
)

func init() {
	source.Register("redshift", func(logger *slog.Logger) source.Source {
		return New(logger)
	})
}

// Redshift implements source.Source against a Redshift cluster.
type Redshift struct {
	logger    *slog.Logger
	cfg       source.Config
	sampleSQL string

	mu    sync.Mutex
	conns map[string]*sql.DB // per database
}

// New creates a Redshift source. A nil logger logs nowhere.
func New(logger *slog.Logger) *Redshift {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Redshift{logger: logger, conns: make(map[string]*sql.DB)}
}

// Connect validates connectivity against the configured database and loads
// the sample query template, when one is configured.
func (r *Redshift) Connect(ctx context.Context, cfg source.Config) error {
	r.cfg = cfg
	if cfg.SampleFile != "" {
		tmpl, err := os.ReadFile(cfg.SampleFile)
		if err != nil {
			return fmt.Errorf("failed to read sample query file: %w", err)
		}
		r.sampleSQL = string(tmpl)
	}

	db, err := r.connFor(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping redshift: %w", err)
	}
	return nil
}

// Close closes every per-database connection.
func (r *Redshift) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, db := range r.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.conns = make(map[string]*sql.DB)
	return firstErr
}

// connFor returns the connection to one database, opening it on first use.
func (r *Redshift) connFor(database string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.conns[database]; ok {
		return db, nil
	}

	db, err := sql.Open("pgx", buildDSN(r.cfg, database))
	if err != nil {
		return nil, fmt.Errorf("failed to open redshift connection to %s: %w", database, err)
	}
	r.logger.Debug("opened redshift connection", "database", database)
	r.conns[database] = db
	return db, nil
}

// buildDSN constructs a key=value connection string for one database.
func buildDSN(cfg source.Config, database string) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5439
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, database, sslmode)
	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// Materialized views surface in svv_all_tables through their backing
// mv_tbl__ tables; those are implementation detail and excluded.
const listTablesQuery = `
	select
		database_name,
		schema_name,
		table_name,
		table_type
	from
		pg_catalog.svv_all_tables
	where
		schema_name not in ('information_schema', 'pg_catalog')
		and substring(table_name, 1, 8) <> 'mv_tbl__'
	order by
		database_name, schema_name, table_name`

const listProcsQuery = `
	select
		n.nspname,
		p.proname
	from
		pg_catalog.pg_namespace n
	join
		pg_catalog.pg_proc p
	on
		pronamespace = n.oid
	where
		proowner = current_user_id
		and proname <> 'get_result_set'`

// ListObjects lists tables and views across all databases, then stored
// procedures per database.
func (r *Redshift) ListObjects(ctx context.Context) ([]source.ListedObject, error) {
	db, err := r.connFor(r.cfg.Database)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list redshift tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objects []source.ListedObject
	databases := make(map[string]struct{})
	for rows.Next() {
		var database, schema, name, tableType string
		if err := rows.Scan(&database, &schema, &name, &tableType); err != nil {
			return nil, fmt.Errorf("failed to scan table listing: %w", err)
		}
		databases[database] = struct{}{}
		objects = append(objects, source.ListedObject{
			Path: catalog.ObjectPath{Database: database, Schema: schema, Name: name},
			Kind: kindFromTableType(tableType),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table listing: %w", err)
	}

	// pg_proc is database-local
	for database := range databases {
		procs, err := r.listProcs(ctx, database)
		if err != nil {
			r.logger.Warn("procedure listing failed", "database", database, "error", err)
			continue
		}
		objects = append(objects, procs...)
	}
	return objects, nil
}

func (r *Redshift) listProcs(ctx context.Context, database string) ([]source.ListedObject, error) {
	db, err := r.connFor(database)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, listProcsQuery)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var objects []source.ListedObject
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, err
		}
		objects = append(objects, source.ListedObject{
			Path: catalog.ObjectPath{Database: database, Schema: schema, Name: name},
			Kind: catalog.KindProcedure,
		})
	}
	return objects, rows.Err()
}

// FetchDDL runs SHOW <kind> on the object's own database.
func (r *Redshift) FetchDDL(ctx context.Context, obj source.ListedObject) (string, error) {
	db, err := r.connFor(obj.Path.Database)
	if err != nil {
		return "", err
	}

	stmt := fmt.Sprintf("show %s %s.%s", showKind(obj.Kind), obj.Path.Schema, obj.Path.Name)
	var ddl string
	if err := db.QueryRowContext(ctx, stmt).Scan(&ddl); err != nil {
		return "", fmt.Errorf("failed to fetch ddl for %s: %w", obj.Path.String(), err)
	}
	return ddl, nil
}

const columnsQuery = `
	select
		column_name,
		data_type
	from
		pg_catalog.svv_all_columns
	where
		database_name = $1
		and schema_name = $2
		and table_name = $3
	order by
		ordinal_position`

// FetchColumns lists the object's columns in ordinal order.
func (r *Redshift) FetchColumns(ctx context.Context, obj source.ListedObject) ([]catalog.Feature, error) {
	db, err := r.connFor(r.cfg.Database)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, columnsQuery, obj.Path.Database, obj.Path.Schema, obj.Path.Name)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.sampleSQL != "" {
		if err := r.sampleFeatures(ctx, obj, features); err != nil {
			r.logger.Warn("sample fetch failed", "object", obj.Path.String(), "error", err)
		}
	}
	return features, nil
}

// sampleFeatures runs the sample query on the object's database and attaches
// one value per column, matched by name.
func (r *Redshift) sampleFeatures(ctx context.Context, obj source.ListedObject, features []catalog.Feature) error {
	db, err := r.connFor(obj.Path.Database)
	if err != nil {
		return err
	}

	query := sampleQueryFor(r.sampleSQL, obj)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	values := make([]sql.NullString, len(cols))
	dests := make([]any, len(cols))
	for i := range values {
		dests[i] = &values[i]
	}
	if err := rows.Scan(dests...); err != nil {
		return err
	}

	byName := make(map[string]string, len(cols))
	for i, col := range cols {
		if values[i].Valid {
			byName[strings.ToLower(col)] = values[i].String
		}
	}
	for i := range features {
		if v, ok := byName[strings.ToLower(features[i].Name)]; ok {
			features[i].Sample = v
		}
	}
	return nil
}

// sampleQueryFor expands the {object} placeholder in the sample template.
func sampleQueryFor(template string, obj source.ListedObject) string {
	return strings.ReplaceAll(template, "{object}", obj.Path.Schema+"."+obj.Path.Name)
}

func kindFromTableType(tableType string) catalog.ObjectKind {
	switch strings.ToUpper(strings.TrimSpace(tableType)) {
	case "VIEW":
		return catalog.KindView
	case "EXTERNAL TABLE":
		return catalog.KindExternalTable
	default:
		return catalog.KindTable
	}
}

// showKind maps an object kind to the word SHOW expects. Materialized
// views list as plain views in svv_all_tables and SHOW VIEW covers both.
func showKind(kind catalog.ObjectKind) string {
	switch kind {
	case catalog.KindView, catalog.KindMaterializedView:
		return "view"
	case catalog.KindExternalTable:
		return "external table"
	case catalog.KindProcedure:
		return "procedure"
	default:
		return "table"
	}
}
