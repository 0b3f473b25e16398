package remote

import (
	"net/url"
	"strconv"
	"strings"
)

// Resource names a Redmine REST collection. Path is the plural form used
// in URLs and list envelopes; Key is the singular envelope key used for
// detail responses and request bodies.
type Resource struct {
	Path string
	Key  string
}

var (
	TimeEntries = Resource{Path: "time_entries", Key: "time_entry"}
	Issues      = Resource{Path: "issues", Key: "issue"}
)

// Filter operators understood by the Redmine query API.
const (
	OpEqual   = "="
	OpBetween = "><"
	OpAny     = "*"
	OpOpen    = "o"
)

// CurrentUser is the filter value Redmine resolves to the key's owner.
const CurrentUser = "me"

// Filter is one f[]/op[]/v[] triple.
type Filter struct {
	Field  string
	Op     string
	Values []string
}

// Query describes a filtered list request against a resource.
type Query struct {
	Resource Resource
	Filters  []Filter
	Params   url.Values
}

// NewQuery starts a query against res.
func NewQuery(res Resource) *Query {
	return &Query{Resource: res, Params: url.Values{}}
}

// Where adds a filter on field.
func (q *Query) Where(field, op string, values ...string) *Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: op, Values: values})
	return q
}

// WhereIDs adds an equality filter matching any of ids. Redmine accepts a
// comma separated list as a single value.
func (q *Query) WhereIDs(field string, ids []int) *Query {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return q.Where(field, OpEqual, strings.Join(parts, ","))
}

// Set adds a plain query parameter such as include=journals.
func (q *Query) Set(key, value string) *Query {
	q.Params.Set(key, value)
	return q
}

// Values encodes the query without pagination or auth parameters.
func (q *Query) Values() url.Values {
	v := url.Values{}
	for key, vals := range q.Params {
		v[key] = append([]string(nil), vals...)
	}
	if len(q.Filters) > 0 {
		v.Set("set_filter", "1")
	}
	for _, f := range q.Filters {
		v.Add("f[]", f.Field)
		v.Set("op["+f.Field+"]", f.Op)
		for _, val := range f.Values {
			v.Add("v["+f.Field+"][]", val)
		}
	}
	return v
}
