package lineage

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

//nolint:revive // TOKEN_* names are intentionally ALL_CAPS for SQL token conventions
const (
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	TOKEN_IDENT
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello'

	TOKEN_PLUS    // +
	TOKEN_MINUS   // -
	TOKEN_STAR    // *
	TOKEN_SLASH   // /
	TOKEN_DPIPE   // ||
	TOKEN_DCOLON  // ::
	TOKEN_EQ      // =
	TOKEN_NE      // != or <>
	TOKEN_LT      // <
	TOKEN_GT      // >
	TOKEN_LE      // <=
	TOKEN_GE      // >=
	TOKEN_DOT     // .
	TOKEN_COMMA   // ,
	TOKEN_LPAREN  // (
	TOKEN_RPAREN  // )
	TOKEN_SEMI    // ;

	// Keywords (alphabetical)
	TOKEN_ALL
	TOKEN_AND
	TOKEN_AS
	TOKEN_ASC
	TOKEN_BETWEEN
	TOKEN_BY
	TOKEN_CASE
	TOKEN_CAST
	TOKEN_CROSS
	TOKEN_DESC
	TOKEN_DISTINCT
	TOKEN_ELSE
	TOKEN_END
	TOKEN_EXCEPT
	TOKEN_FALSE
	TOKEN_FROM
	TOKEN_FULL
	TOKEN_GROUP
	TOKEN_HAVING
	TOKEN_ILIKE
	TOKEN_IN
	TOKEN_INNER
	TOKEN_INTERSECT
	TOKEN_IS
	TOKEN_JOIN
	TOKEN_LEFT
	TOKEN_LIKE
	TOKEN_LIMIT
	TOKEN_NOT
	TOKEN_NULL
	TOKEN_OFFSET
	TOKEN_ON
	TOKEN_OR
	TOKEN_ORDER
	TOKEN_OUTER
	TOKEN_OVER
	TOKEN_PARTITION
	TOKEN_RIGHT
	TOKEN_SELECT
	TOKEN_THEN
	TOKEN_TRUE
	TOKEN_UNION
	TOKEN_WHEN
	TOKEN_WHERE
	TOKEN_WITH
)

// Token is a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// Position is a location in the source text.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based byte offset
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",

	TOKEN_IDENT:  "IDENT",
	TOKEN_NUMBER: "NUMBER",
	TOKEN_STRING: "STRING",

	TOKEN_PLUS:   "+",
	TOKEN_MINUS:  "-",
	TOKEN_STAR:   "*",
	TOKEN_SLASH:  "/",
	TOKEN_DPIPE:  "||",
	TOKEN_DCOLON: "::",
	TOKEN_EQ:     "=",
	TOKEN_NE:     "!=",
	TOKEN_LT:     "<",
	TOKEN_GT:     ">",
	TOKEN_LE:     "<=",
	TOKEN_GE:     ">=",
	TOKEN_DOT:    ".",
	TOKEN_COMMA:  ",",
	TOKEN_LPAREN: "(",
	TOKEN_RPAREN: ")",
	TOKEN_SEMI:   ";",

	TOKEN_ALL:       "ALL",
	TOKEN_AND:       "AND",
	TOKEN_AS:        "AS",
	TOKEN_ASC:       "ASC",
	TOKEN_BETWEEN:   "BETWEEN",
	TOKEN_BY:        "BY",
	TOKEN_CASE:      "CASE",
	TOKEN_CAST:      "CAST",
	TOKEN_CROSS:     "CROSS",
	TOKEN_DESC:      "DESC",
	TOKEN_DISTINCT:  "DISTINCT",
	TOKEN_ELSE:      "ELSE",
	TOKEN_END:       "END",
	TOKEN_EXCEPT:    "EXCEPT",
	TOKEN_FALSE:     "FALSE",
	TOKEN_FROM:      "FROM",
	TOKEN_FULL:      "FULL",
	TOKEN_GROUP:     "GROUP",
	TOKEN_HAVING:    "HAVING",
	TOKEN_ILIKE:     "ILIKE",
	TOKEN_IN:        "IN",
	TOKEN_INNER:     "INNER",
	TOKEN_INTERSECT: "INTERSECT",
	TOKEN_IS:        "IS",
	TOKEN_JOIN:      "JOIN",
	TOKEN_LEFT:      "LEFT",
	TOKEN_LIKE:      "LIKE",
	TOKEN_LIMIT:     "LIMIT",
	TOKEN_NOT:       "NOT",
	TOKEN_NULL:      "NULL",
	TOKEN_OFFSET:    "OFFSET",
	TOKEN_ON:        "ON",
	TOKEN_OR:        "OR",
	TOKEN_ORDER:     "ORDER",
	TOKEN_OUTER:     "OUTER",
	TOKEN_OVER:      "OVER",
	TOKEN_PARTITION: "PARTITION",
	TOKEN_RIGHT:     "RIGHT",
	TOKEN_SELECT:    "SELECT",
	TOKEN_THEN:      "THEN",
	TOKEN_TRUE:      "TRUE",
	TOKEN_UNION:     "UNION",
	TOKEN_WHEN:      "WHEN",
	TOKEN_WHERE:     "WHERE",
	TOKEN_WITH:      "WITH",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       TOKEN_ALL,
	"and":       TOKEN_AND,
	"as":        TOKEN_AS,
	"asc":       TOKEN_ASC,
	"between":   TOKEN_BETWEEN,
	"by":        TOKEN_BY,
	"case":      TOKEN_CASE,
	"cast":      TOKEN_CAST,
	"cross":     TOKEN_CROSS,
	"desc":      TOKEN_DESC,
	"distinct":  TOKEN_DISTINCT,
	"else":      TOKEN_ELSE,
	"end":       TOKEN_END,
	"except":    TOKEN_EXCEPT,
	"false":     TOKEN_FALSE,
	"from":      TOKEN_FROM,
	"full":      TOKEN_FULL,
	"group":     TOKEN_GROUP,
	"having":    TOKEN_HAVING,
	"ilike":     TOKEN_ILIKE,
	"in":        TOKEN_IN,
	"inner":     TOKEN_INNER,
	"intersect": TOKEN_INTERSECT,
	"is":        TOKEN_IS,
	"join":      TOKEN_JOIN,
	"left":      TOKEN_LEFT,
	"like":      TOKEN_LIKE,
	"limit":     TOKEN_LIMIT,
	"not":       TOKEN_NOT,
	"null":      TOKEN_NULL,
	"offset":    TOKEN_OFFSET,
	"on":        TOKEN_ON,
	"or":        TOKEN_OR,
	"order":     TOKEN_ORDER,
	"outer":     TOKEN_OUTER,
	"over":      TOKEN_OVER,
	"partition": TOKEN_PARTITION,
	"right":     TOKEN_RIGHT,
	"select":    TOKEN_SELECT,
	"then":      TOKEN_THEN,
	"true":      TOKEN_TRUE,
	"union":     TOKEN_UNION,
	"when":      TOKEN_WHEN,
	"where":     TOKEN_WHERE,
	"with":      TOKEN_WITH,
}

// LookupIdent returns the keyword token type for ident, or TOKEN_IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}
