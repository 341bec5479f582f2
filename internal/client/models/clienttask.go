package models

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ClientTaskState is the lifecycle state of a client task:
// todo -> in_progress -> done | failed. Failed tasks may be run again.
type ClientTaskState string

const (
	ClientTaskTodo       ClientTaskState = "todo"
	ClientTaskInProgress ClientTaskState = "in_progress"
	ClientTaskDone       ClientTaskState = "done"
	ClientTaskFailed     ClientTaskState = "failed"
)

// Startable reports whether a task in this state may be executed.
func (s ClientTaskState) Startable() bool {
	return s == ClientTaskTodo || s == ClientTaskFailed
}

// WorkTypeUpdateItemShares re-encrypts every share of the target item.
const WorkTypeUpdateItemShares = "update_item_shares"

// ClientTask is server queued work for this client. Report is opaque and is
// passed back to the server as is.
type ClientTask struct {
	ID                    string           `json:"id"`
	WorkType              string           `json:"work_type"`
	TargetID              string           `json:"target_id"`
	State                 ClientTaskState  `json:"state"`
	Report                *structpb.Struct `json:"report"`
	AdditionalOptions     map[string]any   `json:"additional_options,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	LastStateTransitionAt time.Time        `json:"last_state_transition_at"`
}

// FailedClientTask is a task whose execution returned an error.
type FailedClientTask struct {
	ClientTask
	FailureReason error `json:"-"`
}

// ClientTaskUpdate is one entry of PUT /client_task_queue.
type ClientTaskUpdate struct {
	ID     string           `json:"id"`
	State  ClientTaskState  `json:"state"`
	Report *structpb.Struct `json:"report"`
}

// TaskResult partitions an executed batch. Every task appears exactly once.
type TaskResult struct {
	Completed []ClientTask
	Failed    []FailedClientTask
}

// PageMeta is the pagination block of list responses.
type PageMeta struct {
	NextPageExists bool `json:"next_page_exists"`
}

// PageOptions narrows a list call. Zero values mean "server default".
type PageOptions struct {
	NextPageAfter string
	PerPage       int
}
