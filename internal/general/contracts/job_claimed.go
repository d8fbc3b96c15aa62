package contracts

import "time"

// JobClaimedMessage is published by Dispatch Service once a claim wins the
// race. Consumers use it to drop the job from live boards.
// Routing key: "job.claimed.{job_id}" on ExchangeJobTopic.
type JobClaimedMessage struct {
	JobID     string       `json:"job_id"`
	JobNumber string       `json:"job_number,omitempty"`
	WorkerID  string       `json:"worker_id"`
	Worker    *WorkerBrief `json:"worker_info,omitempty"`
	ClaimedAt time.Time    `json:"claimed_at"`
	Envelope
}
