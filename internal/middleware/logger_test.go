package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/swinglab/mediacore/internal/logging"
)

func TestLoggerRecordsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := logging.L()
	logging.Replace(zap.New(core))
	t.Cleanup(func() { logging.Replace(prev) })

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(Logger)
	r.Use(Metrics)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	req.Header.Set(chiMiddleware.RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/items/42", fields["path"])
	assert.EqualValues(t, http.StatusTeapot, fields["status"])
	assert.EqualValues(t, len("short and stout"), fields["size"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestWrappedWriterDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &wrappedWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	_, err := ww.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ww.statusCode)
	assert.EqualValues(t, 3, ww.size)
}
