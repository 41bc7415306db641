package models

import (
	"slices"
	"strconv"
	"strings"

	dErrors "vetclinic/pkg/domain-errors"
)

// SortDirection orders list results by id.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection accepts ASC/DESC in any case, and the "id,desc" form
// Spring Data clients send. An empty value means ascending.
func ParseSortDirection(raw string) (SortDirection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SortAsc, nil
	}
	if property, direction, ok := strings.Cut(raw, ","); ok {
		if !strings.EqualFold(strings.TrimSpace(property), "id") {
			return "", dErrors.New(dErrors.CodeBadRequest, "sort is only supported on id")
		}
		raw = strings.TrimSpace(direction)
	}
	switch strings.ToUpper(raw) {
	case string(SortAsc):
		return SortAsc, nil
	case string(SortDesc):
		return SortDesc, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "sort must be ASC or DESC")
	}
}

// ListQuery selects a page of people. A nil Size means no limit.
type ListQuery struct {
	Size *int
	Sort SortDirection
}

// Descending reports whether the results run from the highest id down.
func (q ListQuery) Descending() bool {
	return q.Sort == SortDesc
}

// Limit returns the size cap, or -1 when unbounded.
func (q ListQuery) Limit() int {
	if q.Size == nil {
		return -1
	}
	return *q.Size
}

// ParseListQuery builds a ListQuery from raw query-string values.
func ParseListQuery(size, sort string) (ListQuery, error) {
	direction, err := ParseSortDirection(sort)
	if err != nil {
		return ListQuery{}, err
	}
	q := ListQuery{Sort: direction}

	size = strings.TrimSpace(size)
	if size == "" {
		return q, nil
	}
	n, err := strconv.Atoi(size)
	if err != nil || n < 0 {
		return ListQuery{}, dErrors.New(dErrors.CodeBadRequest, "size must be a non-negative integer")
	}
	q.Size = &n
	return q, nil
}

// Apply orders people by id and truncates them to the size cap.
// The input slice is not modified.
func (q ListQuery) Apply(people []Person) []Person {
	out := slices.Clone(people)
	slices.SortFunc(out, func(a, b Person) int {
		if q.Descending() {
			return compareID(b.ID, a.ID)
		}
		return compareID(a.ID, b.ID)
	})
	if limit := q.Limit(); limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func compareID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
