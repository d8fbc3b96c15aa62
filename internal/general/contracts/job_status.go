package contracts

import "time"

// JobStatusMessage is published by Dispatch Service on every milestone
// transition, after the transition is durably stored.
// Routing key: "job.status.{status}" on ExchangeJobTopic.
type JobStatusMessage struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	WorkerID  string    `json:"worker_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Terminal  bool      `json:"terminal"`
	Envelope
}
