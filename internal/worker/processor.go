package worker

import (
	"context"
	"fmt"
	"strings"
)

// Task is the unit of work handed to a processor.
type Task struct {
	ID           string
	Description  string
	SystemPrompt string
}

// Outcome is the work product reported back to the task API as a
// comment before the task is moved to done.
type Outcome struct {
	TaskID string
	Output string
}

// Processor turns a task description into a textual work product.
// The model invocation itself lives behind this boundary; the pipeline
// depends only on the contract. Returning an error marks the task as
// failed without requeueing the triggering message.
type Processor interface {
	Process(ctx context.Context, task Task) (*Outcome, error)
}

// PromptProcessor is the built-in implementation: it composes the
// agent's system prompt with the task description into the submission
// a model backend consumes. Deployments with a real backend replace it
// by injecting their own Processor at startup.
type PromptProcessor struct{}

func NewPromptProcessor() *PromptProcessor {
	return &PromptProcessor{}
}

func (p *PromptProcessor) Process(ctx context.Context, task Task) (*Outcome, error) {
	if strings.TrimSpace(task.Description) == "" {
		return nil, fmt.Errorf("task %s has an empty description", task.ID)
	}

	var b strings.Builder
	if task.SystemPrompt != "" {
		b.WriteString(task.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("Task: ")
	b.WriteString(task.Description)

	return &Outcome{
		TaskID: task.ID,
		Output: b.String(),
	}, nil
}
