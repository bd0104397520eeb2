package http

import (
	"mediq/pkg/config"
	apperrors "mediq/pkg/errors"
	"net/http"
	"strconv"
)

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

// ExtractActor pulls the authenticated actor identity injected by the
// upstream auth gateway. Identity issuance itself is out of scope here; the
// booking API only trusts these headers the way it would trust a decoded
// token claim.
func ExtractActor(r *http.Request) (id string, role string) {
	return r.Header.Get("X-Actor-ID"), r.Header.Get("X-Actor-Role")
}
