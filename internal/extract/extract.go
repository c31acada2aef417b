// Package extract identifies the catalog objects a SQL statement defines or
// references, by structural matching over normalized query text. Matching is
// case-insensitive on keywords and case-preserving on captured identifiers.
// Membership in the known-path universe is the sole admission test: captured
// identifiers that are CTE aliases, subquery names, or function calls never
// survive it. Unrecognized statement shapes contribute nothing.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
)

// StatementKind labels the statement shape that produced a captured object.
type StatementKind string

const (
	StatementAlter      StatementKind = "alter"
	StatementCreate     StatementKind = "create"
	StatementInsert     StatementKind = "insert"
	StatementRefresh    StatementKind = "refresh"
	StatementSelectInto StatementKind = "select_into"
	StatementUpdate     StatementKind = "update"
	StatementFrom       StatementKind = "from"
	StatementJoin       StatementKind = "join"
	StatementLocation   StatementKind = "location"
)

// Ref is one extracted object reference.
type Ref struct {
	// Name is the identifier as captured, case preserved.
	Name string
	// Path is the resolved known path; zero for external location refs.
	Path catalog.ObjectPath
	// Kind is the statement shape the identifier was captured from.
	Kind StatementKind
	// External marks a LOCATION target outside the warehouse catalog.
	External bool
}

// childPatterns capture the object each statement shape defines or mutates.
// The identifier runs from the first non-parenthesis character after the
// keyword up to a parenthesis, whitespace, or semicolon delimiter.
var childPatterns = []struct {
	kind StatementKind
	re   *regexp.Regexp
}{
	{StatementAlter, regexp.MustCompile(`(?i)ALTER MATERIALIZED VIEW\s+([^(\s;]+)`)},
	{StatementAlter, regexp.MustCompile(`(?i)ALTER TABLE\s+([^(\s;]+)`)},
	{StatementCreate, regexp.MustCompile(`(?i)CREATE\s+(?:OR REPLACE\s+)?(?:\w+\s+)*?MATERIALIZED VIEW\s+([^(\s;]+)`)},
	{StatementCreate, regexp.MustCompile(`(?i)CREATE\s+(?:OR REPLACE\s+)?(?:\w+\s+)*?TABLE IF NOT EXISTS\s+([^(\s;]+)`)},
	{StatementCreate, regexp.MustCompile(`(?i)CREATE\s+(?:OR REPLACE\s+)?(?:\w+\s+)*?TABLE\s+([^(\s;]+)`)},
	{StatementCreate, regexp.MustCompile(`(?i)CREATE\s+(?:OR REPLACE\s+)?(?:\w+\s+)*?VIEW\s+([^(\s;]+)`)},
	{StatementInsert, regexp.MustCompile(`(?i)INSERT INTO\s+([^(\s;]+)`)},
	{StatementRefresh, regexp.MustCompile(`(?i)REFRESH MATERIALIZED VIEW\s+([^(\s;]+)`)},
	{StatementSelectInto, regexp.MustCompile(`(?i)SELECT\s+.*\s+INTO\s+([^(\s;]+)`)},
	{StatementUpdate, regexp.MustCompile(`(?i)UPDATE\s+([^(\s;]+)`)},
}

// parentPatterns capture the objects a statement reads from.
var parentPatterns = []struct {
	kind StatementKind
	re   *regexp.Regexp
}{
	{StatementFrom, regexp.MustCompile(`(?i)FROM\s+([^(\s;]+)`)},
	{StatementJoin, regexp.MustCompile(`(?i)JOIN\s+([^(\s;]+)`)},
	{StatementLocation, regexp.MustCompile(`(?i)LOCATION\s+'([^']+)'`)},
}

// Session-scoped creations never enter the graph.
var tempCreate = regexp.MustCompile(`(?i)CREATE\s+(?:OR REPLACE\s+)?(?:GLOBAL\s+|LOCAL\s+)?TEMP(?:ORARY)?\s`)

// Children returns the objects defined or mutated by the query, restricted
// to the known-path universe and, when scope is non-empty, to that database.
func Children(query string, known *catalog.PathSet, scope string) []Ref {
	skipTemp := tempCreate.MatchString(query)

	seen := make(map[string]struct{})
	var refs []Ref
	for _, p := range childPatterns {
		for _, m := range p.re.FindAllStringSubmatch(query, -1) {
			name := m[1]
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			if IsTemporary(name) || (skipTemp && p.kind == StatementCreate) {
				continue
			}
			path, ok := known.Match(name, scope)
			if !ok {
				continue
			}
			refs = append(refs, Ref{Name: name, Path: path, Kind: p.kind})
		}
	}
	sortRefs(refs)
	return refs
}

// Parents returns the objects the query reads from: FROM and JOIN targets
// restricted to the known-path universe, plus external LOCATION targets.
func Parents(query string, known *catalog.PathSet, scope string) []Ref {
	seen := make(map[string]struct{})
	var refs []Ref
	for _, p := range parentPatterns {
		for _, m := range p.re.FindAllStringSubmatch(query, -1) {
			name := m[1]
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			if p.kind == StatementLocation {
				if ext, ok := ExternalPath(name); ok {
					refs = append(refs, Ref{Name: name, Path: ext, Kind: p.kind, External: true})
				}
				continue
			}
			if IsTemporary(name) {
				continue
			}
			path, ok := known.Match(name, scope)
			if !ok {
				continue
			}
			refs = append(refs, Ref{Name: name, Path: path, Kind: p.kind})
		}
	}
	sortRefs(refs)
	return refs
}

// IsTemporary reports whether an identifier follows the temporary-object
// naming convention. The check applies to the object segment, ignoring any
// database/schema qualification.
func IsTemporary(name string) bool {
	seg := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		seg = name[i+1:]
	}
	seg = strings.ToLower(seg)
	return strings.HasPrefix(seg, "tmp_") ||
		strings.HasPrefix(seg, "temp_") ||
		strings.HasPrefix(seg, "#")
}

var s3Scheme = regexp.MustCompile(`(?i)^s3[a-z]*://`)

// ExternalPath canonicalizes an object-store URL to an s3.bucket.prefix
// path, the identity used for bucket nodes in the exported graph. Every
// node identity carries three segments, so a URL with no key prefix
// repeats the bucket as the name segment (s3://b -> s3.b.b). Non-S3
// locations are not representable and report false.
func ExternalPath(location string) (catalog.ObjectPath, bool) {
	if !s3Scheme.MatchString(location) {
		return catalog.ObjectPath{}, false
	}
	rest := s3Scheme.ReplaceAllString(location, "")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 3)
	if parts[0] == "" {
		return catalog.ObjectPath{}, false
	}
	p := catalog.ObjectPath{Database: "s3", Schema: parts[0], Name: ""}
	if len(parts) > 1 && parts[1] != "" {
		p.Name = parts[1]
	} else {
		p.Name = parts[0]
	}
	return p, true
}

// sortRefs orders refs lexicographically by captured name so extraction
// output is stable across runs.
func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
}
