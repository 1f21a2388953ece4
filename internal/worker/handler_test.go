package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
	"taskbridge/pkg/models"
)

type fakeReporter struct {
	comments   []string
	done       []string
	commentErr error
	doneErr    error
}

func (f *fakeReporter) AddComment(ctx context.Context, taskID, content string) (taskapi.Comment, error) {
	if f.commentErr != nil {
		return taskapi.Comment{}, f.commentErr
	}
	f.comments = append(f.comments, content)
	return taskapi.Comment{ID: "c-1", Content: content}, nil
}

func (f *fakeReporter) MarkTaskDone(ctx context.Context, taskID string) (taskapi.Task, error) {
	if f.doneErr != nil {
		return taskapi.Task{}, f.doneErr
	}
	f.done = append(f.done, taskID)
	return taskapi.Task{ID: taskID, Table: "done"}, nil
}

type fakePrompts struct {
	prompts map[string]string
	err     error
}

func (f *fakePrompts) SystemPrompt(ctx context.Context, agentID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.prompts[agentID], nil
}

type fakeProcessor struct {
	lastTask Task
	outcome  *Outcome
	err      error
	calls    int
}

func (f *fakeProcessor) Process(ctx context.Context, task Task) (*Outcome, error) {
	f.calls++
	f.lastTask = task
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &Outcome{TaskID: task.ID, Output: "result for " + task.ID}, nil
}

func envelope(event string, data map[string]interface{}) models.EventEnvelope {
	if data == nil {
		data = map[string]interface{}{}
	}
	return models.EventEnvelope{Event: event, Data: data}
}

func TestHandleEvent_TaskCreatedProcessedAndReported(t *testing.T) {
	reporter := &fakeReporter{}
	processor := &fakeProcessor{}
	handler := NewHandler(reporter, nil, processor, logger.NopLogger())

	err := handler.HandleEvent(context.Background(), envelope(models.EventTaskCreated, map[string]interface{}{
		"id":          "t-1",
		"description": "summarize the meeting notes",
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, processor.calls)
	assert.Equal(t, "t-1", processor.lastTask.ID)
	assert.Equal(t, "summarize the meeting notes", processor.lastTask.Description)

	require.Len(t, reporter.comments, 1)
	assert.Equal(t, "result for t-1", reporter.comments[0])
	assert.Equal(t, []string{"t-1"}, reporter.done)
}

func TestHandleEvent_IgnoresNonCreatedEvents(t *testing.T) {
	tests := []string{
		models.EventTaskUpdated,
		models.EventTaskDeleted,
		models.EventTaskMoved,
		models.EventTaskCommented,
		models.EventTaskFeedbackAdded,
		models.EventUnknown,
	}

	for _, event := range tests {
		t.Run(event, func(t *testing.T) {
			reporter := &fakeReporter{}
			processor := &fakeProcessor{}
			handler := NewHandler(reporter, nil, processor, logger.NopLogger())

			err := handler.HandleEvent(context.Background(), envelope(event, map[string]interface{}{
				"id": "t-1",
			}))
			require.NoError(t, err)

			assert.Zero(t, processor.calls)
			assert.Empty(t, reporter.comments)
			assert.Empty(t, reporter.done)
		})
	}
}

func TestHandleEvent_MissingTaskIDIsDropped(t *testing.T) {
	reporter := &fakeReporter{}
	processor := &fakeProcessor{}
	handler := NewHandler(reporter, nil, processor, logger.NopLogger())

	err := handler.HandleEvent(context.Background(), envelope(models.EventTaskCreated, map[string]interface{}{
		"description": "no id anywhere",
	}))
	require.NoError(t, err)

	assert.Zero(t, processor.calls)
	assert.Empty(t, reporter.done)
}

func TestHandleEvent_TaskIDFallback(t *testing.T) {
	reporter := &fakeReporter{}
	processor := &fakeProcessor{}
	handler := NewHandler(reporter, nil, processor, logger.NopLogger())

	err := handler.HandleEvent(context.Background(), envelope(models.EventTaskCreated, map[string]interface{}{
		"task_id":     "t-9",
		"description": "id under the fallback key",
	}))
	require.NoError(t, err)

	assert.Equal(t, "t-9", processor.lastTask.ID)
	assert.Equal(t, []string{"t-9"}, reporter.done)
}

func TestHandleEvent_AgentPromptIsLoaded(t *testing.T) {
	reporter := &fakeReporter{}
	processor := &fakeProcessor{}
	prompts := &fakePrompts{prompts: map[string]string{"agent-1": "You are a planner."}}
	handler := NewHandler(reporter, prompts, processor, logger.NopLogger())

	err := handler.HandleEvent(context.Background(), envelope(models.EventTaskCreated, map[string]interface{}{
		"id":             "t-1",
		"description":    "plan the sprint",
		"responsible_id": "agent-1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "You are a planner.", processor.lastTask.SystemPrompt)
}

func TestHandleEvent_PromptLookupFailureIsTolerated(t *testing.T) {
	reporter := &fakeReporter{}
	processor := &fakeProcessor{}
	prompts := &fakePrompts{err: errors.New("redis down")}
	handler := NewHandler(reporter, prompts, processor, logger.NopLogger())

	err := handler.HandleEvent(context.Background(), envelope(models.EventTaskCreated, map[string]interface{}{
		"id":             "t-1",
		"description":    "plan the sprint",
		"responsible_id": "agent-1",
	}))
	require.NoError(t, err)

	assert.Empty(t, processor.lastTask.SystemPrompt)
	assert.Equal(t, []string{"t-1"}, reporter.done)
}

func TestHandleEvent_ProcessorErrorIsReturned(t *testing.T) {
	reporter := &fakeReporter{}
	processor := &fakeProcessor{err: errors.New("processing blew up")}
	handler := NewHandler(reporter, nil, processor, logger.NopLogger())

	err := handler.HandleEvent(context.Background(), envelope(models.EventTaskCreated, map[string]interface{}{
		"id":          "t-1",
		"description": "doomed",
	}))
	require.Error(t, err)

	assert.Empty(t, reporter.comments)
	assert.Empty(t, reporter.done)
}

func TestHandleEvent_CommentFailureSkipsDone(t *testing.T) {
	reporter := &fakeReporter{commentErr: errors.New("api unavailable")}
	processor := &fakeProcessor{}
	handler := NewHandler(reporter, nil, processor, logger.NopLogger())

	err := handler.HandleEvent(context.Background(), envelope(models.EventTaskCreated, map[string]interface{}{
		"id":          "t-1",
		"description": "doomed",
	}))
	require.Error(t, err)

	assert.Empty(t, reporter.done, "task must not be moved to done when the comment failed")
}

func TestPromptProcessor(t *testing.T) {
	processor := NewPromptProcessor()

	outcome, err := processor.Process(context.Background(), Task{
		ID:           "t-1",
		Description:  "draft the announcement",
		SystemPrompt: "You are a copywriter.",
	})
	require.NoError(t, err)

	assert.Equal(t, "t-1", outcome.TaskID)
	assert.Contains(t, outcome.Output, "You are a copywriter.")
	assert.Contains(t, outcome.Output, "draft the announcement")
}

func TestPromptProcessor_EmptyDescription(t *testing.T) {
	processor := NewPromptProcessor()

	_, err := processor.Process(context.Background(), Task{ID: "t-1", Description: "   "})
	assert.Error(t, err)
}
