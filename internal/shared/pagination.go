package shared

import (
	"math"
	"net/url"
	"strconv"
	"time"
)

// Listing defaults shared by every list endpoint.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(limit, offset, total int) Pagination {
	limit = ClampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Limit: limit, Offset: offset, Total: total, TotalPages: totalPages}
}

// ClampLimit normalises a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ListParams are the common list filters accepted as query parameters.
type ListParams struct {
	Status     string
	CustomerID string
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}

// ParseListParams reads status, customer_id, from_date, to_date, limit and
// offset. Malformed values are reported together.
func ParseListParams(q url.Values) (ListParams, *ValidationError) {
	verr := &ValidationError{}
	params := ListParams{
		Status:     q.Get("status"),
		CustomerID: q.Get("customer_id"),
	}
	if raw := q.Get("from_date"); raw != "" {
		if t, err := parseDate(raw); err != nil {
			verr.Add("from_date", "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
		} else {
			params.FromDate = &t
		}
	}
	if raw := q.Get("to_date"); raw != "" {
		if t, err := parseDate(raw); err != nil {
			verr.Add("to_date", "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
		} else {
			params.ToDate = &t
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("limit", "must be a non-negative integer")
		}
		params.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			verr.Add("offset", "must be a non-negative integer")
		}
		params.Offset = n
	}
	params.Limit = ClampLimit(params.Limit)
	if params.Offset < 0 {
		params.Offset = 0
	}
	if len(verr.Fields) > 0 {
		return params, verr
	}
	return params, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
