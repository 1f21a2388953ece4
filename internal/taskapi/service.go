package taskapi

import (
	"context"
	"fmt"

	"taskbridge/internal/config"
	"taskbridge/internal/constants"
	"taskbridge/internal/logger"
	"taskbridge/pkg/circuitbreaker"
)

type Task struct {
	ID          string `json:"id"`
	Table       string `json:"table"`
	Description string `json:"description"`
}

type Comment struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	APIKey string `json:"api_key,omitempty"`
}

// Service is the domain-oriented facade the worker uses to report
// processing outcomes. Outbound calls run behind an optional circuit
// breaker so a dead task API fails fast instead of holding every
// delivery open for the full HTTP timeout.
type Service struct {
	client  *Client
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewService(client *Client, log logger.Logger) *Service {
	return &Service{
		client: client,
		logger: log,
	}
}

// NewServiceFromConfig builds a worker-side service authenticating with
// the agent API key. The key is required: without it every mutation
// would be rejected, which is a deployment error worth failing early on.
func NewServiceFromConfig(cfg config.TaskAPIConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) (*Service, error) {
	if cfg.AgentAPIKey == "" {
		return nil, fmt.Errorf("agent API key is not set; create an agent user in the task API and configure TASK_API_AGENT_API_KEY")
	}

	svc := NewService(NewClient(cfg, log), log)
	if cbCfg.Enabled {
		breakerCfg := circuitbreaker.DefaultConfig("taskapi")
		if cbCfg.MaxRequests > 0 {
			breakerCfg.MaxRequests = cbCfg.MaxRequests
		}
		if cbCfg.Interval > 0 {
			breakerCfg.Interval = cbCfg.Interval
		}
		if cbCfg.Timeout > 0 {
			breakerCfg.Timeout = cbCfg.Timeout
		}
		svc.breaker = circuitbreaker.NewWrapper(breakerCfg)
	}
	return svc, nil
}

func (s *Service) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if s.breaker == nil {
		return fn()
	}
	return s.breaker.ExecuteWithContext(ctx, fn)
}

func (s *Service) CreateTask(ctx context.Context, table, responsibleID, description string) (Task, error) {
	result, err := s.do(ctx, func() (interface{}, error) {
		var task Task
		err := s.client.Post(ctx, "/tasks", map[string]interface{}{
			"table":          table,
			"responsible_id": responsibleID,
			"description":    description,
		}, &task)
		return task, err
	})
	if err != nil {
		return Task{}, err
	}
	task := result.(Task)
	s.logger.InfowCtx(ctx, "Created task", "task_id", task.ID)
	return task, nil
}

func (s *Service) UpdateTask(ctx context.Context, taskID string, fields map[string]interface{}) (Task, error) {
	result, err := s.do(ctx, func() (interface{}, error) {
		var task Task
		err := s.client.Patch(ctx, "/tasks/"+taskID, fields, &task)
		return task, err
	})
	if err != nil {
		return Task{}, err
	}
	s.logger.InfowCtx(ctx, "Updated task", "task_id", taskID)
	return result.(Task), nil
}

// MoveTask moves a task to a different table / column.
func (s *Service) MoveTask(ctx context.Context, taskID, table string) (Task, error) {
	result, err := s.do(ctx, func() (interface{}, error) {
		var task Task
		err := s.client.Post(ctx, "/tasks/"+taskID+"/move", map[string]string{
			"table": table,
		}, &task)
		return task, err
	})
	if err != nil {
		return Task{}, err
	}
	s.logger.InfowCtx(ctx, "Moved task", "task_id", taskID, "table", table)
	return result.(Task), nil
}

// MarkTaskDone moves a task to the terminal "done" table.
func (s *Service) MarkTaskDone(ctx context.Context, taskID string) (Task, error) {
	return s.MoveTask(ctx, taskID, constants.TableDone)
}

func (s *Service) AddComment(ctx context.Context, taskID, content string) (Comment, error) {
	result, err := s.do(ctx, func() (interface{}, error) {
		var comment Comment
		err := s.client.Post(ctx, "/tasks/"+taskID+"/comments", map[string]string{
			"content": content,
		}, &comment)
		return comment, err
	})
	if err != nil {
		return Comment{}, err
	}
	s.logger.InfowCtx(ctx, "Added comment", "task_id", taskID)
	return result.(Comment), nil
}

// AddFeedback attaches a 1-5 rating (and optional comment) to a task
// that already reached the done table.
func (s *Service) AddFeedback(ctx context.Context, taskID string, rating int, comment string) (Task, error) {
	body := map[string]interface{}{"rating": rating}
	if comment != "" {
		body["comment"] = comment
	}

	result, err := s.do(ctx, func() (interface{}, error) {
		var task Task
		err := s.client.Post(ctx, "/tasks/"+taskID+"/feedback", body, &task)
		return task, err
	})
	if err != nil {
		return Task{}, err
	}
	s.logger.InfowCtx(ctx, "Added feedback", "task_id", taskID, "rating", rating)
	return result.(Task), nil
}

// CreateAgentUser provisions an agent-type user. The response carries
// the one-time API key the new agent authenticates with.
func (s *Service) CreateAgentUser(ctx context.Context, name string) (User, error) {
	result, err := s.do(ctx, func() (interface{}, error) {
		var user User
		err := s.client.Post(ctx, "/users", map[string]string{
			"type": "agent",
			"name": name,
		}, &user)
		return user, err
	})
	if err != nil {
		return User{}, err
	}
	user := result.(User)
	s.logger.InfowCtx(ctx, "Created agent user", "user_id", user.ID, "name", name)
	return user, nil
}
