package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/frahmantamala/maintenance-management/internal"
)

// ParseParams reads list query parameters. Only filters declared on the resource's Spec are kept.
func ParseParams(values url.Values, spec Spec) (Params, error) {
	p := Params{
		Filters:   map[string]string{},
		Search:    strings.TrimSpace(values.Get("search")),
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, internal.NewValidationFieldError("page", "page must be a positive integer", internal.ErrCodeInvalidQuery)
		}
		p.Page = n
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, internal.NewValidationFieldError("limit", "limit must be a positive integer", internal.ErrCodeInvalidQuery)
		}
		p.Limit = n
	}

	for key := range spec.Filters {
		if v := values.Get(key); v != "" {
			p.Filters[key] = v
		}
	}
	for key := range spec.Derived {
		if v := values.Get(key); v != "" {
			p.Filters[key] = v
		}
	}

	return p, nil
}
