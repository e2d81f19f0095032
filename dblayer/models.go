package dblayer

import "time"

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusDegraded  = "degraded"
	RunStatusFailed    = "failed"
)

// Run is one queued or finished podrun invocation.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Status     string     `json:"status"`
	PodName    string     `json:"pod_name,omitempty"`
	Namespace  string     `json:"namespace,omitempty"`
	Phase      string     `json:"phase,omitempty"`
	Output     string     `json:"output,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunOutcome is what a finished run writes back.
type RunOutcome struct {
	Status    string
	PodName   string
	Namespace string
	Phase     string
	Output    string
	Warnings  []string
}
