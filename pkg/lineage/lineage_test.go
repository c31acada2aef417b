package lineage

import (
	"errors"
	"testing"
)

// Helper to fetch a recorded column, failing the test when absent.
func mustColumn(t *testing.T, q QueryLineage, schema, object, column string) ColumnInfo {
	t.Helper()
	byObject, ok := q[schema]
	if !ok {
		t.Fatalf("schema %q not in output: %v", schema, q)
	}
	byColumn, ok := byObject[object]
	if !ok {
		t.Fatalf("object %q not under schema %q: %v", object, schema, byObject)
	}
	info, ok := byColumn[column]
	if !ok {
		t.Fatalf("column %q not under %s.%s: %v", column, schema, object, byColumn)
	}
	return info
}

func hasObject(q QueryLineage, schema, object string) bool {
	byObject, ok := q[schema]
	if !ok {
		return false
	}
	_, ok = byObject[object]
	return ok
}

// =============================================================================
// Test: qualified column references and aliases
// =============================================================================

func TestExtract_QualifiedColumns(t *testing.T) {
	q, err := Extract(`SELECT u.id, u.name AS username FROM sc.users u`, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	id := mustColumn(t, q, "sc", "users", "id")
	if id.Source != "sc.users" {
		t.Errorf("id source = %q, want sc.users", id.Source)
	}
	if id.Alias != "" {
		t.Errorf("id alias = %q, want empty", id.Alias)
	}

	name := mustColumn(t, q, "sc", "users", "name")
	if name.Alias != "username" {
		t.Errorf("name alias = %q, want username", name.Alias)
	}
}

func TestExtract_UnqualifiedSingleSource(t *testing.T) {
	q, err := Extract(`SELECT amount FROM sc.payments`, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	info := mustColumn(t, q, "sc", "payments", "amount")
	if info.Source != "sc.payments" {
		t.Errorf("source = %q, want sc.payments", info.Source)
	}
}

// =============================================================================
// Test: CTEs and scope isolation
// =============================================================================

func TestExtract_CTEResolution(t *testing.T) {
	sql := `WITH recent AS (SELECT o.id, o.total FROM sc.orders o)
		SELECT r.id FROM recent r`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	// CTE internals attribute to the physical table
	mustColumn(t, q, "sc", "orders", "id")
	mustColumn(t, q, "sc", "orders", "total")

	// outer reference attributes to the CTE, not the underlying table's alias
	info := mustColumn(t, q, "", "recent", "id")
	if info.Source != "recent" {
		t.Errorf("source = %q, want recent", info.Source)
	}
}

func TestExtract_CTEAliasDoesNotLeak(t *testing.T) {
	// the alias o lives inside the CTE; the outer statement must not
	// resolve it to sc.orders
	sql := `WITH recent AS (SELECT o.id FROM sc.orders o)
		SELECT o.id FROM recent o`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	info := mustColumn(t, q, "", "recent", "id")
	if info.Source != "recent" {
		t.Errorf("outer o.id resolved to %q, want the CTE", info.Source)
	}
}

func TestExtract_ChainedCTEs(t *testing.T) {
	sql := `WITH a AS (SELECT x FROM sc.base),
		b AS (SELECT x FROM a)
		SELECT x FROM b`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	mustColumn(t, q, "sc", "base", "x")
	mustColumn(t, q, "", "a", "x")
	mustColumn(t, q, "", "b", "x")
}

// =============================================================================
// Test: star expansion and wildcard policy
// =============================================================================

func TestExtract_StarExpandsWithSchema(t *testing.T) {
	schema := Schema{"sc.users": {"id", "email"}}

	q, err := Extract(`SELECT * FROM sc.users`, schema)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	mustColumn(t, q, "sc", "users", "id")
	mustColumn(t, q, "sc", "users", "email")
	if _, ok := q["sc"]["users"]["*"]; ok {
		t.Error("wildcard marker recorded despite known columns")
	}
}

func TestExtract_StarUnresolvedWithoutSchema(t *testing.T) {
	q, err := Extract(`SELECT * FROM sc.users`, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	info := mustColumn(t, q, "sc", "users", "*")
	if !info.Wildcard {
		t.Error("expected unresolved wildcard marker")
	}
}

func TestExtract_TableStar(t *testing.T) {
	schema := Schema{"sc.users": {"id", "email"}}
	sql := `SELECT u.*, o.total FROM sc.users u JOIN sc.orders o ON u.id = o.user_id`

	q, err := Extract(sql, schema)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	mustColumn(t, q, "sc", "users", "id")
	mustColumn(t, q, "sc", "users", "email")
	mustColumn(t, q, "sc", "orders", "total")

	// join condition columns are lineage too
	mustColumn(t, q, "sc", "orders", "user_id")
}

// =============================================================================
// Test: expressions
// =============================================================================

func TestExtract_FunctionAndCase(t *testing.T) {
	sql := `SELECT SUM(amount) AS total,
		CASE WHEN status = 'open' THEN 1 ELSE 0 END AS flag
		FROM sc.payments`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	amount := mustColumn(t, q, "sc", "payments", "amount")
	if amount.Expression != "sum" {
		t.Errorf("amount expression = %q, want sum", amount.Expression)
	}
	if amount.Alias != "total" {
		t.Errorf("amount alias = %q, want total", amount.Alias)
	}

	status := mustColumn(t, q, "sc", "payments", "status")
	if status.Expression != "case" {
		t.Errorf("status expression = %q, want case", status.Expression)
	}
}

func TestExtract_CastAndConcat(t *testing.T) {
	sql := `SELECT p.amount::decimal(10, 2) AS amt, p.code || '-' || p.region FROM sc.payments p`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	amt := mustColumn(t, q, "sc", "payments", "amount")
	if amt.Alias != "amt" {
		t.Errorf("amount alias = %q, want amt", amt.Alias)
	}
	mustColumn(t, q, "sc", "payments", "code")
	mustColumn(t, q, "sc", "payments", "region")
}

func TestExtract_ScalarSubquery(t *testing.T) {
	sql := `SELECT (SELECT MAX(o.total) FROM sc.orders o) AS max_total, u.id FROM sc.users u`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	total := mustColumn(t, q, "sc", "orders", "total")
	if total.Expression != "max" {
		t.Errorf("total expression = %q, want max", total.Expression)
	}
	mustColumn(t, q, "sc", "users", "id")
}

// =============================================================================
// Test: derived tables and set operations
// =============================================================================

func TestExtract_DerivedTable(t *testing.T) {
	sql := `SELECT d.total FROM (SELECT o.total FROM sc.orders o) d`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	mustColumn(t, q, "sc", "orders", "total")
	info := mustColumn(t, q, "", "d", "total")
	if info.Source != "d" {
		t.Errorf("source = %q, want d", info.Source)
	}
}

func TestExtract_UnionBothSides(t *testing.T) {
	sql := `SELECT a FROM sc.t1 UNION ALL SELECT b FROM sc.t2`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	mustColumn(t, q, "sc", "t1", "a")
	mustColumn(t, q, "sc", "t2", "b")
}

func TestExtract_FallbackNamesStayDistinct(t *testing.T) {
	// eleven unaliased literals: the eleventh item's generated name must
	// not collide with the first's
	sql := `SELECT column10 FROM
		(SELECT 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10) wide
		JOIN sc.other o ON o.id = 1`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	info := mustColumn(t, q, "", "wide", "column10")
	if info.Source != "wide" {
		t.Errorf("source = %q, want wide", info.Source)
	}
}

// =============================================================================
// Test: failure modes
// =============================================================================

func TestExtract_UnparsableInput(t *testing.T) {
	_, err := Extract(`DELETE FROM sc.users`, nil)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
}

func TestExtract_AmbiguousUnqualifiedSkipped(t *testing.T) {
	// two sources, no metadata: attributing x would be a guess
	sql := `SELECT x FROM sc.t1 JOIN sc.t2 ON t1.id = t2.id`

	q, err := Extract(sql, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if hasObject(q, "sc", "t1") {
		if _, ok := q["sc"]["t1"]["x"]; ok {
			t.Error("ambiguous column x attributed to t1")
		}
	}
	if hasObject(q, "sc", "t2") {
		if _, ok := q["sc"]["t2"]["x"]; ok {
			t.Error("ambiguous column x attributed to t2")
		}
	}
}
