package models

import "time"

// TaskRun is one executed client task as kept in the local journal. All tasks
// of one Execute call share a RunID.
type TaskRun struct {
	RunID      string    `yaml:"run_id"`
	TaskID     string    `yaml:"task_id"`
	WorkType   string    `yaml:"work_type"`
	TargetID   string    `yaml:"target_id"`
	State      string    `yaml:"state"`
	Failure    string    `yaml:"failure,omitempty"`
	FinishedAt time.Time `yaml:"finished_at"`
}
