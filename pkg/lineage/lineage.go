package lineage

import (
	"strconv"
	"strings"
)

// Schema maps lowercased "schema.object" (or bare object) names to their
// ordered column lists. It feeds star expansion; extraction works without
// it, falling back to wildcard markers.
type Schema map[string][]string

// ColumnInfo describes one resolved column reference.
type ColumnInfo struct {
	// Source is the qualified object the column resolves to.
	Source string `json:"source"`
	// Alias is the output alias from the SELECT list, when present.
	Alias string `json:"alias,omitempty"`
	// Expression names the function or CASE construct wrapping the column.
	Expression string `json:"expression,omitempty"`
	// Wildcard marks a star reference that could not be expanded because
	// column metadata for the object is unknown.
	Wildcard bool `json:"wildcard,omitempty"`
}

// QueryLineage maps schema -> object -> column -> info. CTEs and derived
// tables key under the empty schema. Map ordering is left to the consumer;
// encoding/json sorts keys, so serialized output is deterministic.
type QueryLineage map[string]map[string]map[string]ColumnInfo

func (q QueryLineage) add(schemaName, object, column string, info ColumnInfo) {
	byObject, ok := q[schemaName]
	if !ok {
		byObject = make(map[string]map[string]ColumnInfo)
		q[schemaName] = byObject
	}
	byColumn, ok := byObject[object]
	if !ok {
		byColumn = make(map[string]ColumnInfo)
		byObject[object] = byColumn
	}
	// first resolution wins; a later bare reference must not clobber an
	// aliased or expression-tagged one
	if _, exists := byColumn[column]; !exists {
		byColumn[column] = info
	}
}

// Extract parses a single SELECT statement and reports every column
// reference it could resolve, grouped by schema and object. Aliases in
// nested scopes stay in their scope: a CTE's internal aliases never
// qualify columns of the outer statement.
func Extract(sql string, schema Schema) (QueryLineage, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}

	out := make(QueryLineage)
	e := &extractor{out: out}
	e.walkStatement(NewScope(schema), stmt)
	return out, nil
}

// extractor walks the AST, maintaining scopes, and records resolved
// columns into out.
type extractor struct {
	out QueryLineage
}

// walkStatement processes CTEs then the body, returning the statement's
// output column names for CTE and derived-table registration.
func (e *extractor) walkStatement(scope *Scope, stmt *SelectStmt) []string {
	if stmt == nil {
		return nil
	}
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			// the CTE body resolves in its own scope, seeing earlier CTEs
			cols := e.walkStatement(scope.Child(), cte.Select)
			if len(cte.Columns) > 0 {
				cols = cte.Columns
			}
			scope.DefineCTE(cte.Name, &ScopeEntry{
				Kind:    EntryCTE,
				Name:    cte.Name,
				Object:  cte.Name,
				Columns: cols,
			})
		}
	}
	return e.walkBody(scope, stmt.Body)
}

func (e *extractor) walkBody(scope *Scope, body *SelectBody) []string {
	if body == nil {
		return nil
	}
	names := e.walkCore(scope, body.Left)
	if body.Right != nil {
		e.walkBody(scope, body.Right)
	}
	return names
}

func (e *extractor) walkCore(scope *Scope, core *SelectCore) []string {
	if core == nil {
		return nil
	}
	s := scope.Child()
	if core.From != nil {
		e.registerFrom(s, core.From)
	}

	var names []string
	for i, item := range core.Items {
		names = append(names, e.walkItem(s, item, i)...)
	}
	return names
}

// registerFrom registers FROM and JOIN sources, and records the columns
// referenced by join conditions.
func (e *extractor) registerFrom(s *Scope, from *FromClause) {
	e.registerRef(s, from.Source)
	for _, join := range from.Joins {
		e.registerRef(s, join.Right)
	}
	// conditions resolve only after every joined source is in scope
	for _, join := range from.Joins {
		if join.On != nil {
			e.collectExpr(s, join.On, "", "")
		}
	}
}

func (e *extractor) registerRef(s *Scope, ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		if cte, ok := s.LookupCTE(t.Name); ok && t.Schema == "" {
			name := t.Alias
			if name == "" {
				name = cte.Name
			}
			s.Register(&ScopeEntry{
				Kind:    EntryCTE,
				Name:    name,
				Object:  cte.Object,
				Columns: cte.Columns,
			})
			return
		}
		name := t.Alias
		if name == "" {
			name = t.Name
		}
		s.Register(&ScopeEntry{
			Kind:    EntryTable,
			Name:    name,
			Schema:  t.Schema,
			Object:  t.Name,
			Columns: s.SchemaColumns(t.Schema, t.Name),
		})

	case *DerivedTable:
		cols := e.walkStatement(s.Child(), t.Select)
		name := t.Alias
		if name == "" {
			name = "subquery"
		}
		s.Register(&ScopeEntry{
			Kind:    EntryDerived,
			Name:    name,
			Object:  name,
			Columns: cols,
		})
	}
}

// walkItem records the lineage of one SELECT-list entry and returns its
// output column names.
func (e *extractor) walkItem(s *Scope, item SelectItem, index int) []string {
	if item.Star {
		var names []string
		for _, entry := range s.Local() {
			names = append(names, e.expandStar(entry)...)
		}
		return names
	}
	if item.TableStar != "" {
		entry, ok := e.lookupQualifier(s, item.TableStar)
		if !ok {
			return nil
		}
		return e.expandStar(entry)
	}

	e.collectExpr(s, item.Expr, item.Alias, "")

	name := item.Alias
	if name == "" {
		name = inferColumnName(item.Expr, index)
	}
	return []string{name}
}

// expandStar expands * over one scope entry. Without column metadata the
// wildcard is recorded as such rather than silently dropped.
func (e *extractor) expandStar(entry *ScopeEntry) []string {
	if len(entry.Columns) == 0 {
		e.out.add(entry.Schema, entry.Object, "*", ColumnInfo{
			Source:   entry.QualifiedObject(),
			Wildcard: true,
		})
		return []string{"*"}
	}
	for _, col := range entry.Columns {
		e.out.add(entry.Schema, entry.Object, col, ColumnInfo{
			Source: entry.QualifiedObject(),
		})
	}
	return entry.Columns
}

// collectExpr records every column reference in an expression. alias is
// the select-item output alias; expression names the innermost function
// or CASE construct wrapping the reference.
func (e *extractor) collectExpr(s *Scope, expr Expr, alias, expression string) {
	switch x := expr.(type) {
	case nil:

	case *ColumnRef:
		e.recordRef(s, x, alias, expression)

	case *StarRef:
		if entry, ok := e.lookupQualifier(s, x.Table); ok {
			e.expandStar(entry)
		}

	case *UnaryExpr:
		e.collectExpr(s, x.Expr, alias, expression)

	case *BinaryExpr:
		e.collectExpr(s, x.Left, alias, expression)
		e.collectExpr(s, x.Right, alias, expression)

	case *FuncCall:
		name := strings.ToLower(x.Name)
		for _, arg := range x.Args {
			e.collectExpr(s, arg, alias, name)
		}

	case *CaseExpr:
		e.collectExpr(s, x.Operand, alias, "case")
		for _, w := range x.Whens {
			e.collectExpr(s, w.Condition, alias, "case")
			e.collectExpr(s, w.Result, alias, "case")
		}
		e.collectExpr(s, x.Else, alias, "case")

	case *CastExpr:
		e.collectExpr(s, x.Expr, alias, expression)

	case *ParenExpr:
		e.collectExpr(s, x.Expr, alias, expression)

	case *ExprList:
		for _, item := range x.Items {
			e.collectExpr(s, item, alias, expression)
		}

	case *SubqueryExpr:
		// correlated subqueries may reference the enclosing scope
		e.walkStatement(s.Child(), x.Select)

	case *Literal:
	}
}

// recordRef resolves a single column reference against the scope.
func (e *extractor) recordRef(s *Scope, ref *ColumnRef, alias, expression string) {
	info := ColumnInfo{Alias: alias, Expression: expression}

	if ref.Table != "" {
		if entry, ok := e.lookupQualifier(s, ref.Table); ok {
			info.Source = entry.QualifiedObject()
			e.out.add(entry.Schema, entry.Object, ref.Column, info)
			return
		}
		// unknown qualifier: take the reference at face value
		schemaName, object := splitQualifier(ref.Table)
		info.Source = ref.Table
		e.out.add(schemaName, object, ref.Column, info)
		return
	}

	entry, ok := resolveUnqualified(s, ref.Column)
	if !ok {
		return // ambiguous without metadata, do not guess
	}
	info.Source = entry.QualifiedObject()
	e.out.add(entry.Schema, entry.Object, ref.Column, info)
}

// lookupQualifier resolves a table qualifier: an alias, a bare name, or a
// dotted schema.object form.
func (e *extractor) lookupQualifier(s *Scope, qual string) (*ScopeEntry, bool) {
	if entry, ok := s.Lookup(qual); ok {
		return entry, true
	}
	for cur := s; cur != nil; cur = cur.parent {
		for _, entry := range cur.order {
			if strings.EqualFold(entry.QualifiedObject(), qual) {
				return entry, true
			}
		}
	}
	return nil, false
}

// resolveUnqualified attributes a bare column name. Column metadata
// decides when available; with a single source in scope the column belongs
// to it; otherwise the reference is ambiguous.
func resolveUnqualified(s *Scope, column string) (*ScopeEntry, bool) {
	local := s.Local()

	var withCol []*ScopeEntry
	for _, entry := range local {
		for _, c := range entry.Columns {
			if strings.EqualFold(c, column) {
				withCol = append(withCol, entry)
				break
			}
		}
	}
	if len(withCol) == 1 {
		return withCol[0], true
	}
	if len(withCol) == 0 && len(local) == 1 {
		return local[0], true
	}
	return nil, false
}

func splitQualifier(qual string) (schemaName, object string) {
	parts := strings.Split(qual, ".")
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// inferColumnName derives an output name for an unaliased select item.
func inferColumnName(expr Expr, index int) string {
	switch x := expr.(type) {
	case *ColumnRef:
		return x.Column
	case *FuncCall:
		return strings.ToLower(x.Name)
	case *CastExpr:
		return inferColumnName(x.Expr, index)
	case *ParenExpr:
		return inferColumnName(x.Expr, index)
	}
	return "column" + strconv.Itoa(index)
}
