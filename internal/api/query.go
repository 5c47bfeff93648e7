package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// personQuery builds a filter from ?lastName=&firstName=&email=&username=
// &gender=&customerState=&tierLevel=&subscribed=&page=&size=&sort=field,dir.
func personQuery(r *http.Request, kind domain.PersonType) (store.PersonQuery, error) {
	values := r.URL.Query()
	query := store.PersonQuery{
		PersonType: kind,
		LastName:   strings.TrimSpace(values.Get("lastName")),
		FirstName:  strings.TrimSpace(values.Get("firstName")),
		Email:      strings.TrimSpace(values.Get("email")),
		Username:   strings.ToLower(strings.TrimSpace(values.Get("username"))),
	}

	if raw := values.Get("gender"); raw != "" {
		gender, err := domain.GenderTypes.Parse(raw)
		if err != nil {
			return query, &domain.InvalidArgumentError{Message: err.Error()}
		}
		query.Gender = gender
	}
	if raw := values.Get("customerState"); raw != "" {
		state, err := domain.StatusTypes.Parse(raw)
		if err != nil {
			return query, &domain.InvalidArgumentError{Message: err.Error()}
		}
		query.CustomerState = state
	}
	if raw := values.Get("tierLevel"); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil {
			return query, &domain.InvalidArgumentError{Message: "invalid tierLevel " + raw}
		}
		query.TierLevel = tier
	}
	if raw := values.Get("subscribed"); raw != "" {
		subscribed, err := strconv.ParseBool(raw)
		if err != nil {
			return query, &domain.InvalidArgumentError{Message: "invalid subscribed " + raw}
		}
		query.Subscribed = &subscribed
	}

	page, err := intParam(values.Get("page"), 0)
	if err != nil || page < 0 {
		return query, &domain.InvalidArgumentError{Message: "invalid page " + values.Get("page")}
	}
	size, err := intParam(values.Get("size"), defaultPageSize)
	if err != nil || size < 1 {
		return query, &domain.InvalidArgumentError{Message: "invalid size " + values.Get("size")}
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	query.Offset = page * size
	query.Limit = size

	if raw := strings.TrimSpace(values.Get("sort")); raw != "" {
		field, dir, _ := strings.Cut(raw, ",")
		if !store.SortableFields[field] {
			return query, &domain.InvalidArgumentError{Message: "unsupported sort field " + field}
		}
		query.SortBy = field
		query.SortDir = store.SortAsc
		if strings.EqualFold(strings.TrimSpace(dir), "desc") {
			query.SortDir = store.SortDesc
		}
	}
	return query, nil
}

func intParam(raw string, fallback int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return strconv.Atoi(strings.TrimSpace(raw))
}
