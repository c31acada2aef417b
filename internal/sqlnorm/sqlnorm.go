// Package sqlnorm deep-cleans raw SQL text into a canonical form that is
// safe for structural matching. Comments are removed, string literals are
// neutralized, punctuation is spaced out, and whitespace runs collapse to
// single spaces. Normalize is idempotent and performs no I/O.
package sqlnorm

import (
	"regexp"
	"strings"
)

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	// String literals can contain keywords (a literal 'FROM x' must never
	// match the structural regexes), so their bodies are blanked. LOCATION
	// clauses are the one place the literal body carries lineage.
	stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	locationRef   = regexp.MustCompile(`(?i)LOCATION\s+'[^']*'`)
	punctuation   = regexp.MustCompile(`([(,)])`)
	dottedIdent   = regexp.MustCompile(`([A-Za-z0-9_]+)\s*\.\s*([A-Za-z0-9_]+)`)
	castOperator  = regexp.MustCompile(`\s*::\s*`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Normalize deep-cleans a SQL query. The result is stable under repeated
// application: Normalize(Normalize(q)) == Normalize(q).
func Normalize(query string) string {
	q := blockComment.ReplaceAllString(query, " ")
	q = lineComment.ReplaceAllString(q, " ")

	// Blank string literal bodies, keeping LOCATION targets intact.
	locations := locationRef.FindAllString(q, -1)
	q = stringLiteral.ReplaceAllString(q, "''")
	q = restoreLocations(q, locations)

	q = punctuation.ReplaceAllString(q, " $1 ")
	// Rejoin dotted identifiers. One pass only joins the left pair of
	// db . sc . name, so iterate to a fixpoint.
	for {
		joined := dottedIdent.ReplaceAllString(q, "$1.$2")
		if joined == q {
			break
		}
		q = joined
	}
	q = castOperator.ReplaceAllString(q, "::")
	q = whitespace.ReplaceAllString(q, " ")

	return strings.TrimSpace(q)
}

// restoreLocations puts LOCATION '<target>' clauses back after literal
// blanking, in order of appearance.
func restoreLocations(q string, locations []string) string {
	if len(locations) == 0 {
		return q
	}
	i := 0
	return locationRef.ReplaceAllStringFunc(q, func(string) string {
		if i >= len(locations) {
			return "LOCATION ''"
		}
		loc := locations[i]
		i++
		return loc
	})
}

// Dialect noise that trips up structural parsing without changing what a
// statement reads from or writes to.
var dialectNoise = []*regexp.Regexp{
	regexp.MustCompile(`(?i)BACKUP NO`),
	regexp.MustCompile(`(?i)DISTKEY\s*\([^)]*\)`),
	regexp.MustCompile(`(?i)DISTSTYLE\s+\w+`),
	regexp.MustCompile(`(?i)SORTKEY\s*\([^)]*\)`),
	regexp.MustCompile(`(?i)PARTITIONED BY[^;]*`),
	regexp.MustCompile(`(?i)ROW FORMAT SERDE[^;]*`),
	regexp.MustCompile(`(?i)STORED AS[^;]*`),
	regexp.MustCompile(`(?i)OUTPUTFORMAT\s+'[^']*'`),
	regexp.MustCompile(`(?i)WITH NO SCHEMA BINDING`),
}

// ScrubDialect removes warehouse-specific storage clauses (distribution
// keys, serde declarations, schema-binding modifiers) ahead of AST parsing.
// The removals never alter which objects a statement references.
func ScrubDialect(query string) string {
	q := query
	for _, re := range dialectNoise {
		q = re.ReplaceAllString(q, " ")
	}
	return q
}

// SplitStatements splits a SQL script on top-level semicolons, honoring
// string literals, and drops empty statements.
func SplitStatements(script string) []string {
	var out []string
	var sb strings.Builder
	inString := false

	for i := 0; i < len(script); i++ {
		ch := script[i]
		switch {
		case ch == '\'':
			inString = !inString
			sb.WriteByte(ch)
		case ch == ';' && !inString:
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		default:
			sb.WriteByte(ch)
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}
