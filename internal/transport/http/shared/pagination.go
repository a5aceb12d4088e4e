package shared

import (
	"net/http"
	"strconv"
	"strings"
)

// Page is a limit/offset window over a list endpoint.
type Page struct {
	Limit  int
	Offset int
}

// ReadPage parses limit and offset from the query. Malformed values are added
// to v as field issues; a limit above maxLimit is clamped.
func ReadPage(r *http.Request, v *Validator, defaultLimit, maxLimit int) Page {
	page := Page{Limit: defaultLimit}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			v.Add("limit", "must be a positive integer")
		} else {
			page.Limit = n
		}
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("offset", "must be zero or a positive integer")
		} else {
			page.Offset = n
		}
	}
	if maxLimit > 0 && page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	return page
}

// WriteTotal reports the unpaged result size in X-Total-Count.
func WriteTotal(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}
