package taskapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/config"
	"taskbridge/internal/logger"
	apperrors "taskbridge/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler, apiKey string) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.TaskAPIConfig{
		BaseURL:     server.URL,
		Prefix:      "/api/v1",
		AgentAPIKey: apiKey,
	}, logger.NopLogger())
}

func TestLogin_InstallsBearerToken(t *testing.T) {
	var authHeader string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123"})
	})
	mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})

	client := newTestClient(t, mux, "")

	require.NoError(t, client.Login(context.Background(), "admin@example.com", "password"))
	require.NoError(t, client.Get(context.Background(), "/tasks", nil))

	assert.Equal(t, "Bearer token-123", authHeader)
}

func TestLogin_EmptyTokenIsUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	client := newTestClient(t, mux, "")

	err := client.Login(context.Background(), "admin@example.com", "password")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestRequest_APIKeyWhenNoToken(t *testing.T) {
	var apiKeyHeader string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		apiKeyHeader = r.Header.Get("X-API-Key")
		w.Write([]byte(`{}`))
	})

	client := newTestClient(t, mux, "agent-key")

	require.NoError(t, client.Get(context.Background(), "/tasks", nil))
	assert.Equal(t, "agent-key", apiKeyHeader)
}

func TestRequest_TokenTakesPrecedenceOverAPIKey(t *testing.T) {
	var authHeader, apiKeyHeader string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		apiKeyHeader = r.Header.Get("X-API-Key")
		w.Write([]byte(`{}`))
	})

	client := newTestClient(t, mux, "agent-key")
	client.SetToken("token-123")

	require.NoError(t, client.Get(context.Background(), "/tasks", nil))
	assert.Equal(t, "Bearer token-123", authHeader)
	assert.Empty(t, apiKeyHeader)
}

func TestRequest_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 maps to unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsUnauthorized(err))
			},
		},
		{
			name:   "404 maps to not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsNotFound(err))
			},
		},
		{
			name:   "409 maps to conflict",
			status: http.StatusConflict,
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.IsConflict(err))
			},
		},
		{
			name:   "500 maps back to 500",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.Equal(t, http.StatusInternalServerError, apperrors.ToHTTPStatus(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			client := newTestClient(t, mux, "")

			err := client.Get(context.Background(), "/tasks", nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRequest_NetworkErrorIsServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // refuse connections

	client := NewClient(config.TaskAPIConfig{
		BaseURL: server.URL,
		Prefix:  "/api/v1",
	}, logger.NopLogger())

	err := client.Get(context.Background(), "/tasks", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.ToHTTPStatus(err))
}

func TestHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	client := newTestClient(t, mux, "")
	assert.NoError(t, client.Health(context.Background()))
}
