package catalog

import "sort"

// PathSet is the read-only universe of known object paths. Membership is the
// sole admission test for extracted identifiers: anything outside the set is
// a CTE alias, a subquery name, or a function call and is dropped silently.
type PathSet struct {
	exact  map[string]ObjectPath // dotted path -> path
	sorted []string              // lazily built, for deterministic suffix scans
}

// NewPathSet returns an empty path set.
func NewPathSet() *PathSet {
	return &PathSet{exact: make(map[string]ObjectPath)}
}

// Add inserts a path into the set.
func (s *PathSet) Add(p ObjectPath) {
	s.exact[p.String()] = p
	s.sorted = nil
}

// Len returns the number of paths in the set.
func (s *PathSet) Len() int {
	return len(s.exact)
}

// Contains reports whether the exact dotted path is known.
func (s *PathSet) Contains(dotted string) bool {
	_, ok := s.exact[dotted]
	return ok
}

// Match resolves a captured identifier to a known path. A three-part name
// must match exactly; a schema.name or bare name matches the first known
// path (in sorted order) within database that ends with it. The zero path
// and false mean the identifier is not part of the known universe.
func (s *PathSet) Match(name, database string) (ObjectPath, bool) {
	if p, ok := s.exact[name]; ok {
		if database == "" || p.Database == database {
			return p, true
		}
		return ObjectPath{}, false
	}

	if s.sorted == nil {
		s.sorted = make([]string, 0, len(s.exact))
		for dotted := range s.exact {
			s.sorted = append(s.sorted, dotted)
		}
		sort.Strings(s.sorted)
	}

	for _, dotted := range s.sorted {
		p := s.exact[dotted]
		if database != "" && p.Database != database {
			continue
		}
		if dotted == p.Database+"."+name || p.Schema+"."+p.Name == name || p.Name == name {
			return p, true
		}
	}
	return ObjectPath{}, false
}
