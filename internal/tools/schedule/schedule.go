// Package schedule implements the schedule_create/schedule_list/
// schedule_delete built-in tools (§4.D), thin wrappers over the
// scheduler's job table.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// Scheduler is the subset of internal/scheduler.Scheduler these tools need.
type Scheduler interface {
	Create(ctx context.Context, triggerSpec, action string) (*models.ScheduledJob, error)
	Delete(ctx context.Context, id uint64) error
	List() []models.ScheduledJob
}

type createInput struct {
	Trigger string `json:"trigger"`
	Action  string `json:"action"`
}

// CreateTool implements schedule_create.
type CreateTool struct{ Scheduler Scheduler }

func (t *CreateTool) Name() string { return "schedule_create" }
func (t *CreateTool) Description() string {
	return "Create a scheduled job from a trigger spec and action text."
}
func (t *CreateTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"trigger":{"type":"string"},"action":{"type":"string"}},"required":["trigger","action"]}`)
}
func (t *CreateTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in createInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	job, err := t.Scheduler.Create(ctx, in.Trigger, in.Action)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("scheduled job %d, next fire at %d", job.ID, job.NextFireEpoch)}, nil
}

// ListTool implements schedule_list.
type ListTool struct{ Scheduler Scheduler }

func (t *ListTool) Name() string        { return "schedule_list" }
func (t *ListTool) Description() string { return "List all scheduled jobs." }
func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *ListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	jobs := t.Scheduler.List()
	if len(jobs) == 0 {
		return &agent.ToolResult{Content: "no scheduled jobs"}, nil
	}
	lines := make([]string, 0, len(jobs))
	for _, job := range jobs {
		state := "active"
		if !job.Active {
			state = "inactive"
		}
		lines = append(lines, fmt.Sprintf("%d: %s (%s) next=%d %s", job.ID, job.TriggerSpec, job.Kind, job.NextFireEpoch, state))
	}
	return &agent.ToolResult{Content: strings.Join(lines, "; ")}, nil
}

type deleteInput struct {
	ID uint64 `json:"id"`
}

// DeleteTool implements schedule_delete.
type DeleteTool struct{ Scheduler Scheduler }

func (t *DeleteTool) Name() string        { return "schedule_delete" }
func (t *DeleteTool) Description() string { return "Delete a scheduled job by id." }
func (t *DeleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`)
}
func (t *DeleteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in deleteInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if err := t.Scheduler.Delete(ctx, in.ID); err != nil {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: "deleted job " + strconv.FormatUint(in.ID, 10)}, nil
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
