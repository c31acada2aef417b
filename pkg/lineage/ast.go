package lineage

import "fmt"

// SelectStmt is a parsed SELECT statement, optionally prefixed by WITH.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

// WithClause holds the CTE definitions of a statement.
type WithClause struct {
	CTEs []*CTE
}

// CTE is a single WITH entry: name [(columns)] AS (select).
type CTE struct {
	Name    string
	Columns []string
	Select  *SelectStmt
}

// SelectBody is a SELECT core optionally combined with another body by a
// set operation.
type SelectBody struct {
	Left  *SelectCore
	SetOp string // "UNION", "INTERSECT", "EXCEPT"; empty if none
	Right *SelectBody
}

// SelectCore is a single SELECT clause.
type SelectCore struct {
	Distinct bool
	Items    []SelectItem
	From     *FromClause
}

// SelectItem is one entry of a SELECT list.
type SelectItem struct {
	Expr      Expr
	Alias     string
	Star      bool   // SELECT *
	TableStar string // SELECT t.*, holds the qualifier
}

// FromClause is the FROM source plus any joins. Comma-separated sources
// parse as cross joins.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join is one JOIN clause. The ON condition is parsed but only its column
// references matter downstream.
type Join struct {
	Type  string // "INNER", "LEFT", "RIGHT", "FULL", "CROSS"
	Right TableRef
	On    Expr
}

// TableRef is a table-like source in a FROM clause.
type TableRef interface{ tableRef() }

// TableName references a physical table, view, or CTE by name.
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

// DerivedTable is a parenthesized subquery in a FROM clause.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

func (*TableName) tableRef()    {}
func (*DerivedTable) tableRef() {}

// Expr is a scalar expression.
type Expr interface{ expr() }

// ColumnRef references a column, optionally qualified by a table or alias.
type ColumnRef struct {
	Table  string
	Column string
}

// StarRef is a qualified wildcard (t.*) in expression position.
type StarRef struct {
	Table string
}

// FuncCall is a function application, window clause included.
type FuncCall struct {
	Name string
	Args []Expr
	Star bool // COUNT(*)
}

// Literal is a number, string, boolean, or NULL.
type Literal struct {
	Value string
}

// UnaryExpr is a prefixed expression (-x, NOT x).
type UnaryExpr struct {
	Op   string
	Expr Expr
}

// BinaryExpr is any infix operation. Operator precedence is not modeled:
// lineage only needs the column references, not evaluation order.
type BinaryExpr struct {
	Left  Expr
	Op    string
	Right Expr
}

// CaseExpr is a CASE [operand] WHEN ... END expression.
type CaseExpr struct {
	Operand Expr
	Whens   []*WhenClause
	Else    Expr
}

// WhenClause is one WHEN condition THEN result arm.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr is CAST(expr AS type) or expr::type.
type CastExpr struct {
	Expr Expr
	Type string
}

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

// SubqueryExpr is a scalar or IN-list subquery. Its lineage is scoped to
// itself and never leaks into the enclosing statement.
type SubqueryExpr struct {
	Select *SelectStmt
}

// ExprList is a parenthesized expression list (IN lists).
type ExprList struct {
	Items []Expr
}

func (*ColumnRef) expr()    {}
func (*StarRef) expr()      {}
func (*FuncCall) expr()     {}
func (*Literal) expr()      {}
func (*UnaryExpr) expr()    {}
func (*BinaryExpr) expr()   {}
func (*CaseExpr) expr()     {}
func (*CastExpr) expr()     {}
func (*ParenExpr) expr()    {}
func (*SubqueryExpr) expr() {}
func (*ExprList) expr()     {}

// ParseError is a parse failure with source position.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return "parse error: " + e.Message
}
