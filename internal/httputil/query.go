package httputil

import (
	"net/url"
	"reflect"

	"gorm.io/gorm"
)

// Filter records which fields of a query filter struct a request sets.
//
// Fields are matched by their form tag. Fields tagged filterField:"false"
// are handled by the caller and never compared for equality.
type Filter struct {
	where []any
	set   map[string]bool
}

// ParseFilter reads the query parameters of u that fill fields of filter.
func ParseFilter(u *url.URL, filter any) Filter {
	f := Filter{set: make(map[string]bool)}
	query := u.Query()

	typ := reflect.Indirect(reflect.ValueOf(filter)).Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		if !query.Has(field.Tag.Get("form")) {
			continue
		}

		f.set[field.Name] = true
		if field.Tag.Get("filterField") != "false" {
			// gorm takes the selected fields as []any
			f.where = append(f.where, field.Name)
		}
	}

	return f
}

// IsSet reports if the request sets the field.
func (f Filter) IsSet(field string) bool {
	return f.set[field]
}

// Where restricts q to rows equal to model in the fields the request sets.
// Zero values are compared too.
func (f Filter) Where(q *gorm.DB, model any) *gorm.DB {
	if len(f.where) == 0 {
		return q
	}
	return q.Where(model, f.where...)
}
