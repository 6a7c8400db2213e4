package domain

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Job is one background dispatch run scheduled by the submission endpoint
// and polled by the caller until it reaches done or error.
type Job struct {
	ID           string
	Kind         ReportKind
	Payload      json.RawMessage
	Status       JobStatus
	Result       json.RawMessage
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DispatchRequest is the job payload: everything the worker needs to replay
// the submission without the HTTP request.
type DispatchRequest struct {
	FilePath          string     `json:"file_path"`
	Kind              ReportKind `json:"kind"`
	IgnoreSaturdays   bool       `json:"ignore_saturdays"`
	SelectedTeams     []string   `json:"selected_teams,omitempty"`
	ReportLabel       string     `json:"report_label,omitempty"`
	ReportDisplayName string     `json:"report_display_name,omitempty"`
	Force             bool       `json:"force,omitempty"`
}

// QueueMessage is the transport format sent to queue backends.
type QueueMessage struct {
	JobID       string          `json:"job_id"`
	Kind        ReportKind      `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	RequestedAt time.Time       `json:"requested_at"`
}
