package webhooks

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/despachantemarcelino/hookd/internal/config"
)

func TestCORSPolicy_Patterns(t *testing.T) {
	policy, err := NewCORSPolicy(config.CORSConfig{
		AllowedOrigins: []string{"https://*.despachantemarcelino.com.br", "http://localhost:*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	})
	require.NoError(t, err)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://painel.despachantemarcelino.com.br", "https://painel.despachantemarcelino.com.br"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example.com", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			policy.Apply(rec, req)

			require.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
			require.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}

func TestCORSPolicy_InvalidPattern(t *testing.T) {
	_, err := NewCORSPolicy(config.CORSConfig{AllowedOrigins: []string{"https://[a-"}})
	require.Error(t, err)
}

func TestCORSPolicy_Middleware(t *testing.T) {
	policy, err := NewCORSPolicy(config.Default().Webhook.CORS)
	require.NoError(t, err)

	called := false
	h := policy.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/deliveries", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, called)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/deliveries", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.True(t, called)
}
