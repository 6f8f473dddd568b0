package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/yurykabanov/archivist/pkg/appcontext"
)

const RequestIdHeader = "X-Request-Id"

// WithRequestId tags every request with an id, reusing the one sent by the
// client when present, and echoes it in the response.
func WithRequestId(next http.Handler, nextRequestId func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(RequestIdHeader)
		if len(requestId) > 128 {
			requestId = ""
		}

		if requestId == "" {
			requestId = nextRequestId()
		}

		w.Header().Set(RequestIdHeader, requestId)
		next.ServeHTTP(w, r.WithContext(appcontext.WithRequestId(r.Context(), requestId)))
	})
}

func DefaultRequestIdProvider() string {
	return uuid.NewString()
}
