package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/config"
	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
	apperrors "taskbridge/pkg/errors"
)

// fakeTaskAPI simulates the webhook endpoints of the task API with an
// in-memory registration table.
type fakeTaskAPI struct {
	mu            sync.Mutex
	registrations map[string]taskapi.WebhookRegistration
	nextID        int

	failLogin  bool
	failList   bool
	failCreate bool
}

func (f *fakeTaskAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if f.failLogin {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})

	mux.HandleFunc("GET /api/v1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		if f.failList {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		regs := make([]taskapi.WebhookRegistration, 0, len(f.registrations))
		for _, reg := range f.registrations {
			regs = append(regs, reg)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": regs})
	})

	mux.HandleFunc("POST /api/v1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		if f.failCreate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			URL    string   `json:"url"`
			Events []string `json:"events"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		reg := taskapi.WebhookRegistration{
			ID:     fmt.Sprintf("wh-%d", f.nextID),
			URL:    req.URL,
			Events: req.Events,
			Secret: fmt.Sprintf("secret-%d", f.nextID),
		}
		f.registrations[reg.ID] = reg
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(reg)
	})

	mux.HandleFunc("DELETE /api/v1/webhooks/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/webhooks/")
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.registrations[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.registrations, id)
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (f *fakeTaskAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registrations)
}

func newTestRegistry(t *testing.T, api *fakeTaskAPI) (*Registry, *httptest.Server) {
	t.Helper()

	if api.registrations == nil {
		api.registrations = make(map[string]taskapi.WebhookRegistration)
	}
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	taskCfg := config.TaskAPIConfig{
		BaseURL:       server.URL,
		Prefix:        "/api/v1",
		AdminEmail:    "admin@example.com",
		AdminPassword: "password",
	}
	webhookCfg := config.WebhookConfig{
		CallbackURL: "http://taskbridge:9000/webhook",
		Events:      []string{"task.created", "task.updated"},
	}

	client := taskapi.NewClient(taskCfg, logger.NopLogger())
	return NewRegistry(client, taskCfg, webhookCfg, logger.NopLogger()), server
}

func TestSignup(t *testing.T) {
	api := &fakeTaskAPI{}
	registry, _ := newTestRegistry(t, api)

	reg, err := registry.Signup(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, reg.ID)
	assert.NotEmpty(t, reg.Secret)
	assert.Equal(t, "http://taskbridge:9000/webhook", reg.URL)
	assert.Equal(t, 1, api.count())
}

func TestSignup_RepeatLeavesOneRegistration(t *testing.T) {
	api := &fakeTaskAPI{}
	registry, _ := newTestRegistry(t, api)

	first, err := registry.Signup(context.Background())
	require.NoError(t, err)

	second, err := registry.Signup(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, api.count(), "stale registration must be cleaned up")
}

func TestSignup_CleanupFailureIsNonFatal(t *testing.T) {
	api := &fakeTaskAPI{failList: true}
	registry, _ := newTestRegistry(t, api)

	reg, err := registry.Signup(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Secret)
}

func TestSignup_LoginFailureIsFatal(t *testing.T) {
	api := &fakeTaskAPI{failLogin: true}
	registry, _ := newTestRegistry(t, api)

	_, err := registry.Signup(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, 0, api.count())
}

func TestSignup_RegisterFailureIsFatal(t *testing.T) {
	api := &fakeTaskAPI{failCreate: true}
	registry, _ := newTestRegistry(t, api)

	_, err := registry.Signup(context.Background())
	require.Error(t, err)
}
