package http

import (
	"net/http"
	"strconv"
	"time"

	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
)

const ActorHeader = "X-Actor-ID"

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractTime parses an RFC 3339 query parameter; a missing parameter yields nil.
func ExtractTime(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid " + name + " parameter, expected RFC 3339: " + s)
	}
	return &t, nil
}

// ExtractVersion reads the optional expected version from the If-Match header or ?version=.
// Zero means the caller did not pin a version.
func ExtractVersion(r *http.Request) (int64, error) {
	s := r.Header.Get("If-Match")
	if s == "" {
		s = r.URL.Query().Get("version")
	}
	if s == "" {
		return 0, nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, apperrors.InvalidInput("invalid version: " + s)
	}
	return v, nil
}

// Actor returns the caller identity set by the upstream gateway, or "anonymous".
func Actor(r *http.Request) string {
	if actor := r.Header.Get(ActorHeader); actor != "" {
		return actor
	}
	return "anonymous"
}
