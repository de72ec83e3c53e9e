package googleapi

import (
	"net/http"
	"strconv"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

// classifyStatus maps a Google API error status to a canonical error kind.
// Rate-limit responses carry the Retry-After hint through when present.
func classifyStatus(service string, status int, body string, headers http.Header) error {
	if status == http.StatusTooManyRequests {
		retryAfter := 0
		if v := headers.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = secs
			}
		}
		return apperr.RateLimit(service, retryAfter)
	}
	return apperr.FromStatus(service, status, body)
}
