// Package jsonapi encodes request parameters for, and decodes paginated
// envelopes from, the upstream JSON:API-style marketing platform.
package jsonapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Operator is one of the upstream's fixed comparison operators.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpGreaterThan        Operator = "greater-than"
	OpLessThan           Operator = "less-than"
	OpGreaterOrEqual     Operator = "greater-or-equal"
	OpLessOrEqual        Operator = "less-or-equal"
	OpContains           Operator = "contains"
)

// Filter is a single `op(field,value)` predicate.
type Filter struct {
	Op    Operator
	Field string
	Value interface{} // string, time.Time, int, int64, or float64
}

// PageSelector requests a page of results by cursor or size.
type PageSelector struct {
	Cursor string
	Size   int
}

// Params is the structured request shape accepted by the upstream client's
// get/getPaginated operations.
type Params struct {
	Filters []Filter
	Sort    []string
	Include []string
	Fields  map[string][]string // resource type -> field names
	Page    PageSelector
}

// EncodeFilterValue renders a single filter value per the upstream's
// encoding rules: ISO-8601 for datetimes, double-quoted strings with
// internal quotes escaped, bare numbers otherwise.
func EncodeFilterValue(v interface{}) string {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case string:
		escaped := strings.ReplaceAll(val, `"`, `\"`)
		return `"` + escaped + `"`
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// EncodeFilter renders a single filter as `op(field,value)`.
func EncodeFilter(f Filter) string {
	return fmt.Sprintf("%s(%s,%s)", f.Op, f.Field, EncodeFilterValue(f.Value))
}

// EncodeParams serializes Params into a url.Values ready to be appended to
// the upstream request URL.
func EncodeParams(p Params) url.Values {
	v := url.Values{}

	if len(p.Filters) > 0 {
		parts := make([]string, len(p.Filters))
		for i, f := range p.Filters {
			parts[i] = EncodeFilter(f)
		}
		v.Set("filter", strings.Join(parts, ","))
	}

	if len(p.Sort) > 0 {
		v.Set("sort", strings.Join(p.Sort, ","))
	}

	if len(p.Include) > 0 {
		v.Set("include", strings.Join(p.Include, ","))
	}

	for resource, fields := range p.Fields {
		if len(fields) == 0 {
			continue
		}
		v.Set(fmt.Sprintf("fields[%s]", resource), strings.Join(fields, ","))
	}

	if p.Page.Cursor != "" {
		v.Set("page[cursor]", p.Page.Cursor)
	}
	if p.Page.Size > 0 {
		v.Set("page[size]", strconv.Itoa(p.Page.Size))
	}

	return v
}

// BuildURL appends the encoded Params as a query string to path.
func BuildURL(baseURL, path string, p Params) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	u.RawQuery = EncodeParams(p).Encode()
	return u.String(), nil
}
