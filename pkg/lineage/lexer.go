package lineage

import "strings"

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // 1-based
	col     int  // 1-based
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	var tok Token
	tok.Pos = pos

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
	case '+':
		tok = l.newToken(TOKEN_PLUS, "+")
	case '-':
		tok = l.newToken(TOKEN_MINUS, "-")
	case '*':
		tok = l.newToken(TOKEN_STAR, "*")
	case '/':
		tok = l.newToken(TOKEN_SLASH, "/")
	case '=':
		tok = l.newToken(TOKEN_EQ, "=")
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: TOKEN_LE, Literal: "<=", Pos: pos}
		case '>':
			l.readChar()
			tok = Token{Type: TOKEN_NE, Literal: "<>", Pos: pos}
		default:
			tok = l.newToken(TOKEN_LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_GE, Literal: ">=", Pos: pos}
		} else {
			tok = l.newToken(TOKEN_GT, ">")
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: TOKEN_NE, Literal: "!=", Pos: pos}
		} else {
			tok = l.newToken(TOKEN_ILLEGAL, string(l.ch))
		}
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			tok = Token{Type: TOKEN_DPIPE, Literal: "||", Pos: pos}
		} else {
			tok = l.newToken(TOKEN_ILLEGAL, string(l.ch))
		}
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = Token{Type: TOKEN_DCOLON, Literal: "::", Pos: pos}
		} else {
			tok = l.newToken(TOKEN_ILLEGAL, string(l.ch))
		}
	case '.':
		tok = l.newToken(TOKEN_DOT, ".")
	case ',':
		tok = l.newToken(TOKEN_COMMA, ",")
	case '(':
		tok = l.newToken(TOKEN_LPAREN, "(")
	case ')':
		tok = l.newToken(TOKEN_RPAREN, ")")
	case ';':
		tok = l.newToken(TOKEN_SEMI, ";")
	case '\'':
		tok.Type = TOKEN_STRING
		tok.Literal = l.readString()
		tok.Pos = pos
		return tok
	case '"':
		// Quoted identifier (ANSI style)
		tok.Type = TOKEN_IDENT
		tok.Literal = l.readQuotedIdentifier()
		tok.Pos = pos
		return tok
	default:
		if isLetter(l.ch) || l.ch == '_' {
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(strings.ToLower(tok.Literal))
			tok.Pos = pos
			return tok
		}
		if isDigit(l.ch) {
			tok.Type = TOKEN_NUMBER
			tok.Literal = l.readNumber()
			tok.Pos = pos
			return tok
		}
		tok = l.newToken(TOKEN_ILLEGAL, string(l.ch))
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, literal string) Token {
	return Token{Type: tokenType, Literal: literal, Pos: l.currentPos()}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for {
				if l.ch == 0 {
					return // unterminated block comment
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}
		break
	}
}

// readString reads a single-quoted string literal. Doubled single quotes
// escape: 'it''s' -> it's.
func (l *Lexer) readString() string {
	l.readChar() // opening quote

	var sb strings.Builder
	for {
		if l.ch == 0 {
			break // unterminated
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // closing quote
			break
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return sb.String()
}

// readQuotedIdentifier reads a double-quoted identifier with "" escapes.
func (l *Lexer) readQuotedIdentifier() string {
	l.readChar() // opening quote

	var sb strings.Builder
	for {
		if l.ch == 0 {
			break // unterminated
		}
		if l.ch == '"' {
			if l.peekChar() == '"' {
				sb.WriteByte('"')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // closing quote
			break
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return sb.String()
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
