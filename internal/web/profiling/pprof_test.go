package profiling

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		path   string
	}{
		{"default", nil, "/debug/pprof/goroutine?debug=1"},
		{"custom path", &Config{Path: "/_pprof"}, "/_pprof/heap"},
		{"index", &Config{}, "/debug/pprof/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			RegisterRoutes(r, tt.config)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.NotZero(t, rec.Body.Len())
		})
	}
}
