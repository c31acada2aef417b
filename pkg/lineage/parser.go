// Package lineage parses a single SELECT statement and resolves its column
// references back to source objects through the statement's alias scopes.
//
// The parser is a recursive descent parser over a pragmatic subset of SQL:
//
//	statement   → [WITH cte_list] select_body
//	select_body → select_core [(UNION|INTERSECT|EXCEPT) [ALL] select_body]
//	select_core → SELECT [DISTINCT] select_list [FROM from_clause] trailing
//
// Trailing clauses (WHERE, GROUP BY, ORDER BY, LIMIT and friends) are
// consumed without interpretation: only the SELECT list and FROM clause
// carry the column and alias facts this package reports. Expressions parse
// flat, without operator precedence, because lineage needs the referenced
// columns and not an evaluation order.
package lineage

import (
	"fmt"
	"strings"
)

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{lexer: NewLexer(sql)}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses one SELECT statement and returns its AST. The first parse
// failure is returned as a *ParseError.
func Parse(sql string) (*SelectStmt, error) {
	p := NewParser(sql)
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// ---------- Token helpers ----------

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.token.Type)
	return false
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// ---------- Statements ----------

func (p *Parser) parseStatement() *SelectStmt {
	stmt := &SelectStmt{}
	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
	}
	if !p.check(TOKEN_SELECT) {
		p.errorf("expected SELECT, got %s", p.token.Type)
		return stmt
	}
	stmt.Body = p.parseSelectBody()
	return stmt
}

func (p *Parser) parseWithClause() *WithClause {
	p.nextToken() // WITH
	w := &WithClause{}
	for {
		if !p.check(TOKEN_IDENT) {
			p.errorf("expected CTE name, got %s", p.token.Type)
			return w
		}
		cte := &CTE{Name: p.token.Literal}
		p.nextToken()

		// Optional explicit column list: name (a, b) AS (...)
		if p.check(TOKEN_LPAREN) {
			p.nextToken()
			for p.check(TOKEN_IDENT) {
				cte.Columns = append(cte.Columns, p.token.Literal)
				p.nextToken()
				if !p.match(TOKEN_COMMA) {
					break
				}
			}
			p.expect(TOKEN_RPAREN)
		}

		p.expect(TOKEN_AS)
		p.expect(TOKEN_LPAREN)
		cte.Select = p.parseStatement()
		p.expect(TOKEN_RPAREN)
		w.CTEs = append(w.CTEs, cte)

		if !p.match(TOKEN_COMMA) {
			return w
		}
	}
}

func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{Left: p.parseSelectCore()}
	switch p.token.Type {
	case TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT:
		body.SetOp = strings.ToUpper(p.token.Literal)
		p.nextToken()
		p.match(TOKEN_ALL)
		p.match(TOKEN_DISTINCT)
		body.Right = p.parseSelectBody()
	}
	return body
}

func (p *Parser) parseSelectCore() *SelectCore {
	p.expect(TOKEN_SELECT)
	core := &SelectCore{}
	if p.match(TOKEN_DISTINCT) {
		core.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}

	for {
		core.Items = append(core.Items, p.parseSelectItem())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}

	if p.match(TOKEN_FROM) {
		core.From = p.parseFromClause()
	}

	p.skipTrailingClauses()
	return core
}

// skipTrailingClauses consumes everything up to the end of the current
// select core: a set operation, a closing paren of the enclosing subquery,
// a semicolon, or end of input.
func (p *Parser) skipTrailingClauses() {
	depth := 0
	for {
		switch p.token.Type {
		case TOKEN_EOF:
			return
		case TOKEN_SEMI, TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT:
			if depth == 0 {
				return
			}
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth == 0 {
				return
			}
			depth--
		}
		p.nextToken()
	}
}

func (p *Parser) parseSelectItem() SelectItem {
	if p.check(TOKEN_STAR) {
		p.nextToken()
		return SelectItem{Star: true}
	}

	expr := p.parseExpr()
	if sr, ok := expr.(*StarRef); ok {
		if sr.Table == "" {
			return SelectItem{Star: true}
		}
		return SelectItem{TableStar: sr.Table}
	}

	item := SelectItem{Expr: expr}
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.errorf("expected alias after AS, got %s", p.token.Type)
		}
	} else if p.check(TOKEN_IDENT) {
		item.Alias = p.token.Literal
		p.nextToken()
	}
	return item
}

// ---------- FROM clause ----------

func (p *Parser) parseFromClause() *FromClause {
	f := &FromClause{Source: p.parseTableRef()}
	for {
		if p.match(TOKEN_COMMA) {
			f.Joins = append(f.Joins, &Join{Type: "CROSS", Right: p.parseTableRef()})
			continue
		}

		joinType := ""
		switch p.token.Type {
		case TOKEN_JOIN:
			joinType = "INNER"
			p.nextToken()
		case TOKEN_INNER, TOKEN_LEFT, TOKEN_RIGHT, TOKEN_FULL, TOKEN_CROSS:
			joinType = strings.ToUpper(p.token.Literal)
			p.nextToken()
			p.match(TOKEN_OUTER)
			if !p.match(TOKEN_JOIN) {
				p.errorf("expected JOIN, got %s", p.token.Type)
				return f
			}
		default:
			return f
		}

		j := &Join{Type: joinType, Right: p.parseTableRef()}
		if p.match(TOKEN_ON) {
			j.On = p.parseExpr()
		}
		f.Joins = append(f.Joins, j)
	}
}

func (p *Parser) parseTableRef() TableRef {
	if p.check(TOKEN_LPAREN) {
		p.nextToken()
		if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
			d := &DerivedTable{Select: p.parseStatement()}
			p.expect(TOKEN_RPAREN)
			d.Alias = p.parseOptionalAlias()
			return d
		}
		ref := p.parseTableRef()
		p.expect(TOKEN_RPAREN)
		return ref
	}

	if !p.check(TOKEN_IDENT) {
		p.errorf("expected table name, got %s", p.token.Type)
		return &TableName{}
	}

	parts := []string{p.token.Literal}
	p.nextToken()
	for p.check(TOKEN_DOT) && p.checkPeek(TOKEN_IDENT) {
		p.nextToken()
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	t := &TableName{}
	switch len(parts) {
	case 1:
		t.Name = parts[0]
	case 2:
		t.Schema, t.Name = parts[0], parts[1]
	default:
		t.Catalog, t.Schema, t.Name = parts[0], parts[1], parts[2]
	}
	t.Alias = p.parseOptionalAlias()
	return t
}

func (p *Parser) parseOptionalAlias() string {
	if p.match(TOKEN_AS) {
		if p.check(TOKEN_IDENT) {
			a := p.token.Literal
			p.nextToken()
			return a
		}
		p.errorf("expected alias after AS, got %s", p.token.Type)
		return ""
	}
	if p.check(TOKEN_IDENT) {
		a := p.token.Literal
		p.nextToken()
		return a
	}
	return ""
}

// ---------- Expressions ----------

func (p *Parser) parseExpr() Expr {
	left := p.parseUnary()
	for {
		switch p.token.Type {
		case TOKEN_PLUS, TOKEN_MINUS, TOKEN_STAR, TOKEN_SLASH, TOKEN_DPIPE,
			TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE,
			TOKEN_AND, TOKEN_OR, TOKEN_LIKE, TOKEN_ILIKE:
			op := p.token.Literal
			p.nextToken()
			left = &BinaryExpr{Left: left, Op: op, Right: p.parseUnary()}

		case TOKEN_IS:
			p.nextToken()
			p.match(TOKEN_NOT)
			// NULL, TRUE, or FALSE
			p.nextToken()
			left = &UnaryExpr{Op: "IS", Expr: left}

		case TOKEN_NOT:
			// NOT LIKE, NOT IN, NOT BETWEEN; the negation itself carries
			// no lineage.
			p.nextToken()

		case TOKEN_IN:
			p.nextToken()
			left = &BinaryExpr{Left: left, Op: "IN", Right: p.parseInList()}

		case TOKEN_BETWEEN:
			p.nextToken()
			low := p.parseUnary()
			p.expect(TOKEN_AND)
			high := p.parseUnary()
			left = &BinaryExpr{Left: left, Op: "BETWEEN",
				Right: &BinaryExpr{Left: low, Op: "AND", Right: high}}

		default:
			return left
		}
	}
}

func (p *Parser) parseInList() Expr {
	p.expect(TOKEN_LPAREN)
	if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
		sub := &SubqueryExpr{Select: p.parseStatement()}
		p.expect(TOKEN_RPAREN)
		return sub
	}
	list := &ExprList{}
	for !p.check(TOKEN_RPAREN) && !p.check(TOKEN_EOF) {
		list.Items = append(list.Items, p.parseExpr())
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.expect(TOKEN_RPAREN)
	return list
}

func (p *Parser) parseUnary() Expr {
	switch p.token.Type {
	case TOKEN_MINUS, TOKEN_PLUS, TOKEN_NOT:
		op := strings.ToUpper(p.token.Literal)
		p.nextToken()
		return &UnaryExpr{Op: op, Expr: p.parseUnary()}
	}
	return p.parsePostfix()
}

// parsePostfix handles the :: cast operator.
func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for p.check(TOKEN_DCOLON) {
		p.nextToken()
		typ := p.token.Literal
		p.nextToken()
		// parameterized types: varchar(64), decimal(10, 2)
		if p.check(TOKEN_LPAREN) {
			p.skipBalancedParens()
		}
		expr = &CastExpr{Expr: expr, Type: typ}
	}
	return expr
}

func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER, TOKEN_STRING:
		lit := &Literal{Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_TRUE, TOKEN_FALSE, TOKEN_NULL:
		lit := &Literal{Value: strings.ToUpper(p.token.Literal)}
		p.nextToken()
		return lit

	case TOKEN_CASE:
		return p.parseCase()

	case TOKEN_CAST:
		return p.parseCast()

	case TOKEN_LPAREN:
		p.nextToken()
		if p.check(TOKEN_SELECT) || p.check(TOKEN_WITH) {
			sub := &SubqueryExpr{Select: p.parseStatement()}
			p.expect(TOKEN_RPAREN)
			return sub
		}
		inner := p.parseExpr()
		p.expect(TOKEN_RPAREN)
		return &ParenExpr{Expr: inner}

	case TOKEN_IDENT:
		return p.parseIdentExpr()

	case TOKEN_STAR:
		p.nextToken()
		return &StarRef{}

	default:
		p.errorf("unexpected %s in expression", p.token.Type)
		p.nextToken()
		return &Literal{}
	}
}

// parseIdentExpr parses a function call, qualified star, or column
// reference starting at an identifier.
func (p *Parser) parseIdentExpr() Expr {
	name := p.token.Literal
	if p.checkPeek(TOKEN_LPAREN) {
		p.nextToken()
		return p.parseFuncCall(name)
	}
	p.nextToken()

	parts := []string{name}
	for p.check(TOKEN_DOT) {
		if p.checkPeek(TOKEN_STAR) {
			p.nextToken()
			p.nextToken()
			return &StarRef{Table: strings.Join(parts, ".")}
		}
		if !p.checkPeek(TOKEN_IDENT) {
			break
		}
		p.nextToken()
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	return &ColumnRef{
		Table:  strings.Join(parts[:len(parts)-1], "."),
		Column: parts[len(parts)-1],
	}
}

func (p *Parser) parseFuncCall(name string) Expr {
	p.expect(TOKEN_LPAREN)
	fc := &FuncCall{Name: name}
	if !p.match(TOKEN_DISTINCT) {
		p.match(TOKEN_ALL)
	}

	if p.check(TOKEN_STAR) {
		fc.Star = true
		p.nextToken()
	} else {
		for !p.check(TOKEN_RPAREN) && !p.check(TOKEN_EOF) {
			fc.Args = append(fc.Args, p.parseExpr())
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}

	// Arguments using syntax outside the expression grammar, like
	// EXTRACT(epoch FROM ts), leave tokens before the closing paren.
	if !p.check(TOKEN_RPAREN) {
		p.skipToCloseParen()
	}
	p.expect(TOKEN_RPAREN)

	// window specification
	if p.match(TOKEN_OVER) {
		if p.check(TOKEN_LPAREN) {
			p.skipBalancedParens()
		}
	}
	return fc
}

func (p *Parser) parseCase() Expr {
	p.nextToken() // CASE
	c := &CaseExpr{}
	if !p.check(TOKEN_WHEN) {
		c.Operand = p.parseExpr()
	}
	for p.match(TOKEN_WHEN) {
		w := &WhenClause{Condition: p.parseExpr()}
		p.expect(TOKEN_THEN)
		w.Result = p.parseExpr()
		c.Whens = append(c.Whens, w)
	}
	if p.match(TOKEN_ELSE) {
		c.Else = p.parseExpr()
	}
	p.expect(TOKEN_END)
	return c
}

func (p *Parser) parseCast() Expr {
	p.nextToken() // CAST
	p.expect(TOKEN_LPAREN)
	e := p.parseExpr()
	p.expect(TOKEN_AS)

	var typ []string
	for !p.check(TOKEN_RPAREN) && !p.check(TOKEN_EOF) {
		typ = append(typ, p.token.Literal)
		p.nextToken()
	}
	p.expect(TOKEN_RPAREN)
	return &CastExpr{Expr: e, Type: strings.Join(typ, " ")}
}

// skipBalancedParens consumes a parenthesized group, current token must be
// the opening paren.
func (p *Parser) skipBalancedParens() {
	depth := 0
	for {
		switch p.token.Type {
		case TOKEN_EOF:
			return
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
			if depth == 0 {
				p.nextToken()
				return
			}
		}
		p.nextToken()
	}
}

// skipToCloseParen consumes tokens up to, not including, the closing paren
// of the current group.
func (p *Parser) skipToCloseParen() {
	depth := 0
	for {
		switch p.token.Type {
		case TOKEN_EOF:
			return
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth == 0 {
				return
			}
			depth--
		}
		p.nextToken()
	}
}
