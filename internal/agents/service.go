package agents

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"taskbridge/internal/config"
	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
	apperrors "taskbridge/pkg/errors"
)

// Provisioner creates the matching agent user in the task API when an
// agent config is created here.
type Provisioner interface {
	Provision(ctx context.Context, name string) (taskapi.User, error)
}

type Service interface {
	List(ctx context.Context) ([]Agent, error)
	Get(ctx context.Context, agentID string) (Agent, error)
	Create(ctx context.Context, req CreateAgentRequest) (Agent, error)
	Update(ctx context.Context, agentID string, req UpdateAgentRequest) (Agent, error)
	Delete(ctx context.Context, agentID string) error
}

type service struct {
	store       ConfigStore
	provisioner Provisioner
	logger      logger.Logger
}

func NewService(store ConfigStore, provisioner Provisioner, log logger.Logger) Service {
	return &service{
		store:       store,
		provisioner: provisioner,
		logger:      log,
	}
}

func (s *service) List(ctx context.Context) ([]Agent, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	sort.Strings(ids)

	agents := make([]Agent, 0, len(ids))
	for _, id := range ids {
		cfg, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, apperrors.ErrInternal.WithCause(err)
		}
		if cfg != nil {
			agents = append(agents, toAgent(id, *cfg))
		}
	}
	return agents, nil
}

func (s *service) Get(ctx context.Context, agentID string) (Agent, error) {
	cfg, err := s.store.Get(ctx, agentID)
	if err != nil {
		return Agent{}, apperrors.ErrInternal.WithCause(err)
	}
	if cfg == nil {
		return Agent{}, apperrors.ErrNotFound.WithDetail("message", "agent not found")
	}
	return toAgent(agentID, *cfg), nil
}

// Create provisions an agent user in the task API and stores the
// config keyed by the returned user id, so the worker can look the
// prompt up by the responsible id on a task event. Provisioning
// failure is tolerated: the config is stored without an API key and
// can be re-linked later.
func (s *service) Create(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	cfg := AgentConfig{
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
	}

	if s.provisioner != nil {
		user, err := s.provisioner.Provision(ctx, req.Name)
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Failed to provision agent user in task API, storing config without API key",
				"error", err,
			)
		} else {
			cfg.APIKey = user.APIKey
			cfg.TaskUserID = user.ID
		}
	}

	agentID := cfg.TaskUserID
	if agentID == "" {
		agentID = req.AgentID
	}
	if agentID == "" {
		agentID = uuid.NewString()
	}

	exists, err := s.store.Exists(ctx, agentID)
	if err != nil {
		return Agent{}, apperrors.ErrInternal.WithCause(err)
	}
	if exists {
		return Agent{}, apperrors.ErrConflict.WithDetail("message", "agent already exists").WithDetail("agent_id", agentID)
	}

	if err := s.store.Set(ctx, agentID, cfg); err != nil {
		return Agent{}, apperrors.ErrInternal.WithCause(err)
	}

	s.logger.InfowCtx(ctx, "Created agent config", "agent_id", agentID, "name", req.Name)
	return toAgent(agentID, cfg), nil
}

func (s *service) Update(ctx context.Context, agentID string, req UpdateAgentRequest) (Agent, error) {
	cfg, err := s.store.Get(ctx, agentID)
	if err != nil {
		return Agent{}, apperrors.ErrInternal.WithCause(err)
	}
	if cfg == nil {
		return Agent{}, apperrors.ErrNotFound.WithDetail("message", "agent not found")
	}

	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.SystemPrompt != nil {
		cfg.SystemPrompt = *req.SystemPrompt
	}

	if err := s.store.Set(ctx, agentID, *cfg); err != nil {
		return Agent{}, apperrors.ErrInternal.WithCause(err)
	}

	s.logger.InfowCtx(ctx, "Updated agent config", "agent_id", agentID)
	return toAgent(agentID, *cfg), nil
}

func (s *service) Delete(ctx context.Context, agentID string) error {
	removed, err := s.store.Delete(ctx, agentID)
	if err != nil {
		return apperrors.ErrInternal.WithCause(err)
	}
	if !removed {
		return apperrors.ErrNotFound.WithDetail("message", "agent not found")
	}

	s.logger.InfowCtx(ctx, "Deleted agent config", "agent_id", agentID)
	return nil
}

// AdminProvisioner logs in with admin credentials for every
// provisioning call. Creation is rare enough that caching the token
// is not worth handling its expiry.
type AdminProvisioner struct {
	cfg    config.TaskAPIConfig
	logger logger.Logger
}

func NewAdminProvisioner(cfg config.TaskAPIConfig, log logger.Logger) *AdminProvisioner {
	return &AdminProvisioner{
		cfg:    cfg,
		logger: log,
	}
}

func (p *AdminProvisioner) Provision(ctx context.Context, name string) (taskapi.User, error) {
	client := taskapi.NewClient(p.cfg, p.logger)
	if err := client.Login(ctx, p.cfg.AdminEmail, p.cfg.AdminPassword); err != nil {
		return taskapi.User{}, err
	}
	return taskapi.NewService(client, p.logger).CreateAgentUser(ctx, name)
}
