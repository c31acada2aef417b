package lineage

import "strings"

// EntryKind classifies what a scope name refers to.
type EntryKind int

const (
	// EntryTable is a physical table or view.
	EntryTable EntryKind = iota
	// EntryCTE is a WITH-defined common table expression.
	EntryCTE
	// EntryDerived is a subquery in a FROM clause.
	EntryDerived
)

// ScopeEntry is one resolvable name in a statement scope.
type ScopeEntry struct {
	Kind    EntryKind
	Name    string   // effective name: alias if present, base name otherwise
	Schema  string   // schema part; empty for CTEs and derived tables
	Object  string   // object part: table name, CTE name, or derived alias
	Columns []string // known output columns; empty when metadata is absent
}

// QualifiedObject returns the schema.object form, or just the object when
// no schema applies.
func (e *ScopeEntry) QualifiedObject() string {
	if e.Schema == "" {
		return e.Object
	}
	return e.Schema + "." + e.Object
}

// Scope holds the names visible to one SELECT core. Each core gets its own
// scope; subqueries and CTE bodies get child scopes, so aliases never leak
// to an outer or sibling statement.
type Scope struct {
	parent  *Scope
	schema  Schema
	entries map[string]*ScopeEntry // lowercased effective name
	order   []*ScopeEntry          // registration order
	ctes    map[string]*ScopeEntry // lowercased CTE name
}

// NewScope creates a root scope with optional schema metadata.
func NewScope(schema Schema) *Scope {
	return &Scope{
		schema:  schema,
		entries: make(map[string]*ScopeEntry),
		ctes:    make(map[string]*ScopeEntry),
	}
}

// Child creates a nested scope that can resolve through the parent chain.
func (s *Scope) Child() *Scope {
	c := NewScope(s.schema)
	c.parent = s
	return c
}

// Register adds an entry to this scope.
func (s *Scope) Register(e *ScopeEntry) {
	key := strings.ToLower(e.Name)
	if _, dup := s.entries[key]; !dup {
		s.order = append(s.order, e)
	}
	s.entries[key] = e
}

// Lookup resolves an effective name through the scope chain.
func (s *Scope) Lookup(name string) (*ScopeEntry, bool) {
	key := strings.ToLower(name)
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.entries[key]; ok {
			return e, true
		}
	}
	return nil, false
}

// Local returns this scope's entries in registration order, without the
// parent chain. Star expansion works over the local scope only.
func (s *Scope) Local() []*ScopeEntry {
	return s.order
}

// DefineCTE makes a CTE definition visible to this scope and its children.
func (s *Scope) DefineCTE(name string, e *ScopeEntry) {
	s.ctes[strings.ToLower(name)] = e
}

// LookupCTE resolves a CTE definition through the scope chain.
func (s *Scope) LookupCTE(name string) (*ScopeEntry, bool) {
	key := strings.ToLower(name)
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.ctes[key]; ok {
			return e, true
		}
	}
	return nil, false
}

// SchemaColumns returns the known column list for a physical table, or nil.
func (s *Scope) SchemaColumns(schemaName, object string) []string {
	if s.schema == nil {
		return nil
	}
	key := strings.ToLower(object)
	if schemaName != "" {
		key = strings.ToLower(schemaName) + "." + key
	}
	return s.schema[key]
}
