package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

func etag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

func setETag(w http.ResponseWriter, version int) {
	w.Header().Set("ETag", etag(version))
}

// requestVersion returns the version a client last read. If-Match wins over
// the fallback taken from the body or query string.
func requestVersion(r *http.Request, fallback *int) (int, error) {
	if header := strings.TrimSpace(r.Header.Get("If-Match")); header != "" {
		return parseETag(header)
	}
	if fallback != nil {
		return *fallback, nil
	}
	return 0, &domain.InvalidArgumentError{Message: "version required in If-Match header or request"}
}

// parseETag accepts "<n>" and W/"<n>".
func parseETag(raw string) (int, error) {
	raw = strings.TrimPrefix(raw, "W/")
	if len(raw) < 3 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return 0, &domain.InvalidArgumentError{Message: "invalid If-Match header " + raw}
	}
	version, err := strconv.Atoi(raw[1 : len(raw)-1])
	if err != nil || version < 0 {
		return 0, &domain.InvalidArgumentError{Message: "invalid version in If-Match header " + raw}
	}
	return version, nil
}

// queryVersion reads an optional integer query parameter.
func queryVersion(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil || version < 0 {
		return nil, &domain.InvalidArgumentError{Message: "invalid " + name + " " + raw}
	}
	return &version, nil
}
