package spatial

import "strings"

// dbfNameLen is the longest field name a DBF header can hold.
const dbfNameLen = 10

// FieldResolver maps requested attribute names onto column names that may
// have been truncated by a DBF header. Names compare case-insensitively.
type FieldResolver map[string]string

// NewFieldResolver indexes the columns present in attrs.
func NewFieldResolver(attrs Attributes) FieldResolver {
	r := make(FieldResolver, len(attrs))
	for name := range attrs {
		r[strings.ToLower(name)] = name
	}
	return r
}

// Column returns the column holding field: an exact match, else the longest
// truncated column name that prefixes field.
func (r FieldResolver) Column(field string) (string, bool) {
	key := strings.ToLower(field)
	if col, ok := r[key]; ok {
		return col, true
	}
	var best string
	for lower, col := range r {
		if len(lower) >= dbfNameLen && len(lower) > len(best) && strings.HasPrefix(key, lower) {
			best = col
		}
	}
	return best, best != ""
}

// Project returns attrs keyed by the requested field names. Fields without a
// column are omitted.
func (r FieldResolver) Project(attrs Attributes, fields []string) Attributes {
	out := make(Attributes, len(fields))
	for _, f := range fields {
		if col, ok := r.Column(f); ok {
			out[f] = attrs[col]
		}
	}
	return out
}

// Canonical returns a copy of attrs in which every column resolving to one
// of fields is stored under that field's full name. Other columns are kept
// as they are.
func Canonical(attrs Attributes, fields []string) Attributes {
	out := make(Attributes, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	r := NewFieldResolver(attrs)
	for _, f := range fields {
		col, ok := r.Column(f)
		if !ok || col == f {
			continue
		}
		out[f] = attrs[col]
		delete(out, col)
	}
	return out
}
