// Package catalog holds the in-memory registry of warehouse objects for a
// single extraction run. An object is created when first seen in a catalog
// listing, enriched once its DDL and columns are fetched, and never deleted
// within a run.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// ObjectKind classifies a catalog object.
type ObjectKind string

const (
	KindTable            ObjectKind = "TABLE"
	KindView             ObjectKind = "VIEW"
	KindMaterializedView ObjectKind = "MATERIALIZED VIEW"
	KindExternalTable    ObjectKind = "EXTERNAL TABLE"
	KindProcedure        ObjectKind = "PROCEDURE"
)

// ObjectPath is the (database, schema, name) triple uniquely identifying a
// catalog object. The zero value is not a valid path.
type ObjectPath struct {
	Database string
	Schema   string
	Name     string
}

// String returns the three-part dotted form database.schema.name.
func (p ObjectPath) String() string {
	return p.Database + "." + p.Schema + "." + p.Name
}

// IsZero reports whether the path is unset.
func (p ObjectPath) IsZero() bool {
	return p.Database == "" && p.Schema == "" && p.Name == ""
}

// ParsePath parses a dotted database.schema.name string.
func ParsePath(s string) (ObjectPath, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ObjectPath{}, fmt.Errorf("object path %q: want database.schema.name", s)
	}
	for _, part := range parts {
		if part == "" {
			return ObjectPath{}, fmt.Errorf("object path %q: empty segment", s)
		}
	}
	return ObjectPath{Database: parts[0], Schema: parts[1], Name: parts[2]}, nil
}

// Feature describes a single column: name, declared datatype, and an
// optional sampled value. Column order mirrors catalog ordinal position.
type Feature struct {
	Name     string `json:"name"`
	DataType string `json:"datatype"`
	Sample   string `json:"sample,omitempty"`
}

// Object is a table, view, materialized view, external table, or stored
// procedure known to the registry.
type Object struct {
	Path    ObjectPath
	Kind    ObjectKind
	DDL     string // empty until fetched
	Columns []Feature
}

// Registry maps full object paths to their metadata for one run. It has no
// intrinsic locking: the snapshot loop enriches each entry independently and
// lineage computation starts only after the registry is closed over.
type Registry struct {
	objects map[ObjectPath]*Object
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[ObjectPath]*Object)}
}

// Register adds an object, or updates its kind when the path is already
// present. It never duplicates a node.
func (r *Registry) Register(path ObjectPath, kind ObjectKind) *Object {
	if o, ok := r.objects[path]; ok {
		o.Kind = kind
		return o
	}
	o := &Object{Path: path, Kind: kind}
	r.objects[path] = o
	return o
}

// SetDDL records the raw definition text for a registered object.
func (r *Registry) SetDDL(path ObjectPath, ddl string) bool {
	o, ok := r.objects[path]
	if !ok {
		return false
	}
	o.DDL = ddl
	return true
}

// SetColumns records the ordered column sequence for a registered object.
func (r *Registry) SetColumns(path ObjectPath, columns []Feature) bool {
	o, ok := r.objects[path]
	if !ok {
		return false
	}
	o.Columns = columns
	return true
}

// Get returns the object at path, if registered.
func (r *Registry) Get(path ObjectPath) (*Object, bool) {
	o, ok := r.objects[path]
	return o, ok
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	return len(r.objects)
}

// Objects returns all registered objects sorted by dotted path.
func (r *Registry) Objects() []*Object {
	out := make([]*Object, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path.String() < out[j].Path.String()
	})
	return out
}

// Paths returns the known-path set used as the extraction admission filter.
func (r *Registry) Paths() *PathSet {
	ps := NewPathSet()
	for p := range r.objects {
		ps.Add(p)
	}
	return ps
}
