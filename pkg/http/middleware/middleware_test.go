package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/yurykabanov/archivist/pkg/appcontext"
)

func TestWithRequestId_Generated(t *testing.T) {
	var seen string

	h := WithRequestId(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := appcontext.LoggerFromContext(logrus.New(), r.Context()).(*logrus.Entry)
		seen, _ = entry.Data["request_id"].(string)
	}), func() string { return "generated" })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "generated", seen)
	assert.Equal(t, "generated", rec.Header().Get("X-Request-Id"))
}

func TestWithRequestId_Propagated(t *testing.T) {
	h := WithRequestId(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), func() string { return "generated" })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "upstream")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "upstream", rec.Header().Get("X-Request-Id"))
}

func TestWithRequestId_OversizedReplaced(t *testing.T) {
	h := WithRequestId(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), func() string { return "generated" })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("a", 200))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "generated", rec.Header().Get("X-Request-Id"))
}

func TestDefaultRequestIdProvider(t *testing.T) {
	a, b := DefaultRequestIdProvider(), DefaultRequestIdProvider()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestWithRequestLogging(t *testing.T) {
	out := &bytes.Buffer{}
	logger := logrus.New()
	logger.Out = out
	logger.SetFormatter(&logrus.JSONFormatter{})

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}), logger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/runs", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, out.String(), `"status":418`)
	assert.Contains(t, out.String(), `"content_length":5`)
	assert.Contains(t, out.String(), `"request_uri":"/metrics/runs"`)
	assert.Contains(t, out.String(), `"level":"warning"`)
}
