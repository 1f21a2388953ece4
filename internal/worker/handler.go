package worker

import (
	"context"
	"time"

	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
	"taskbridge/pkg/metrics"
	"taskbridge/pkg/models"
)

// TaskReporter is the slice of the task API service the worker needs
// to report outcomes.
type TaskReporter interface {
	AddComment(ctx context.Context, taskID, content string) (taskapi.Comment, error)
	MarkTaskDone(ctx context.Context, taskID string) (taskapi.Task, error)
}

// PromptSource looks up the system prompt configured for an agent.
type PromptSource interface {
	SystemPrompt(ctx context.Context, agentID string) (string, error)
}

// Handler processes one task event end to end. It reacts only to
// task.created: every other kind is a side effect of processing
// (moved, commented, ...) and reacting to those would re-trigger the
// webhook, re-publish, and re-invoke this handler in a loop.
type Handler struct {
	tasks     TaskReporter
	prompts   PromptSource
	processor Processor
	logger    logger.Logger
}

func NewHandler(tasks TaskReporter, prompts PromptSource, processor Processor, log logger.Logger) *Handler {
	return &Handler{
		tasks:     tasks,
		prompts:   prompts,
		processor: processor,
		logger:    log,
	}
}

// HandleEvent is the broker handler. Returning an error marks the
// message as failed; the consumer logs and acknowledges it either way.
func (h *Handler) HandleEvent(ctx context.Context, env models.EventEnvelope) error {
	h.logger.InfowCtx(ctx, "Worker received event", "payload_keys", payloadKeys(env.Data))

	if env.Event != models.EventTaskCreated {
		h.logger.DebugwCtx(ctx, "Ignoring event, not actionable")
		return nil
	}

	taskID := env.TaskID()
	if taskID == "" {
		metrics.MessagesDroppedTotal.WithLabelValues("missing_task_id").Inc()
		h.logger.WarnwCtx(ctx, "No task id found in payload, skipping")
		return nil
	}

	task := Task{
		ID:          taskID,
		Description: env.Description(),
	}

	if h.prompts != nil {
		if agentID := env.ResponsibleID(); agentID != "" {
			prompt, err := h.prompts.SystemPrompt(ctx, agentID)
			if err != nil {
				h.logger.WarnwCtx(ctx, "Could not load agent system prompt, proceeding without it",
					"agent_id", agentID,
					"error", err,
				)
			} else {
				task.SystemPrompt = prompt
			}
		}
	}

	start := time.Now()

	outcome, err := h.processor.Process(ctx, task)
	if err != nil {
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		metrics.ObserveProcessingDuration(time.Since(start), "failed")
		return err
	}

	if _, err := h.tasks.AddComment(ctx, taskID, outcome.Output); err != nil {
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		metrics.ObserveProcessingDuration(time.Since(start), "failed")
		return err
	}

	if _, err := h.tasks.MarkTaskDone(ctx, taskID); err != nil {
		metrics.TasksProcessedTotal.WithLabelValues("failed").Inc()
		metrics.ObserveProcessingDuration(time.Since(start), "failed")
		return err
	}

	metrics.TasksProcessedTotal.WithLabelValues("succeeded").Inc()
	metrics.ObserveProcessingDuration(time.Since(start), "succeeded")
	h.logger.InfowCtx(ctx, "Task marked as done")
	return nil
}

func payloadKeys(data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys
}
