package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
	apperrors "taskbridge/pkg/errors"
)

type memStore struct {
	configs map[string]AgentConfig
	err     error
}

func newMemStore() *memStore {
	return &memStore{configs: make(map[string]AgentConfig)}
}

func (m *memStore) Set(ctx context.Context, agentID string, cfg AgentConfig) error {
	if m.err != nil {
		return m.err
	}
	m.configs[agentID] = cfg
	return nil
}

func (m *memStore) Get(ctx context.Context, agentID string) (*AgentConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	cfg, ok := m.configs[agentID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *memStore) Delete(ctx context.Context, agentID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.configs[agentID]
	delete(m.configs, agentID)
	return ok, nil
}

func (m *memStore) Exists(ctx context.Context, agentID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.configs[agentID]
	return ok, nil
}

func (m *memStore) List(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]string, 0, len(m.configs))
	for id := range m.configs {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeProvisioner struct {
	user taskapi.User
	err  error
}

func (f *fakeProvisioner) Provision(ctx context.Context, name string) (taskapi.User, error) {
	if f.err != nil {
		return taskapi.User{}, f.err
	}
	return f.user, nil
}

func TestServiceCreate_ProvisionsAndStores(t *testing.T) {
	store := newMemStore()
	provisioner := &fakeProvisioner{user: taskapi.User{ID: "user-1", Name: "planner", APIKey: "key-1"}}
	svc := NewService(store, provisioner, logger.NopLogger())

	agent, err := svc.Create(context.Background(), CreateAgentRequest{
		Name:         "planner",
		SystemPrompt: "You plan sprints.",
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", agent.AgentID, "agent id must follow the provisioned user id")
	assert.Equal(t, "key-1", agent.APIKey)

	stored := store.configs["user-1"]
	assert.Equal(t, "You plan sprints.", stored.SystemPrompt)
	assert.Equal(t, "user-1", stored.TaskUserID)
}

func TestServiceCreate_ProvisionFailureIsTolerated(t *testing.T) {
	store := newMemStore()
	provisioner := &fakeProvisioner{err: errors.New("task API down")}
	svc := NewService(store, provisioner, logger.NopLogger())

	agent, err := svc.Create(context.Background(), CreateAgentRequest{Name: "planner"})
	require.NoError(t, err)

	assert.NotEmpty(t, agent.AgentID, "an id is generated when provisioning fails")
	assert.Empty(t, agent.APIKey)
}

func TestServiceCreate_DuplicateIsConflict(t *testing.T) {
	store := newMemStore()
	store.configs["agent-1"] = AgentConfig{Name: "existing"}
	svc := NewService(store, nil, logger.NopLogger())

	_, err := svc.Create(context.Background(), CreateAgentRequest{Name: "new", AgentID: "agent-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestServiceGet(t *testing.T) {
	store := newMemStore()
	store.configs["agent-1"] = AgentConfig{Name: "planner", SystemPrompt: "You plan."}
	svc := NewService(store, nil, logger.NopLogger())

	agent, err := svc.Get(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "planner", agent.Name)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestServiceList_Sorted(t *testing.T) {
	store := newMemStore()
	store.configs["b"] = AgentConfig{Name: "beta"}
	store.configs["a"] = AgentConfig{Name: "alpha"}
	svc := NewService(store, nil, logger.NopLogger())

	agents, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "a", agents[0].AgentID)
	assert.Equal(t, "b", agents[1].AgentID)
}

func TestServiceUpdate(t *testing.T) {
	store := newMemStore()
	store.configs["agent-1"] = AgentConfig{Name: "planner", SystemPrompt: "old"}
	svc := NewService(store, nil, logger.NopLogger())

	newPrompt := "new prompt"
	agent, err := svc.Update(context.Background(), "agent-1", UpdateAgentRequest{SystemPrompt: &newPrompt})
	require.NoError(t, err)

	assert.Equal(t, "planner", agent.Name, "unset fields keep their values")
	assert.Equal(t, "new prompt", agent.SystemPrompt)
}

func TestServiceUpdate_MissingIsNotFound(t *testing.T) {
	svc := NewService(newMemStore(), nil, logger.NopLogger())

	name := "x"
	_, err := svc.Update(context.Background(), "missing", UpdateAgentRequest{Name: &name})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestServiceDelete(t *testing.T) {
	store := newMemStore()
	store.configs["agent-1"] = AgentConfig{Name: "planner"}
	svc := NewService(store, nil, logger.NopLogger())

	require.NoError(t, svc.Delete(context.Background(), "agent-1"))
	assert.Empty(t, store.configs)

	err := svc.Delete(context.Background(), "agent-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
