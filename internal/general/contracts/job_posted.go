package contracts

// JobPostedMessage is published by Dispatch Service when a new job enters
// the board. It carries only the redacted summary a worker is allowed to
// see before claiming.
// Routing key: "job.posted.{kind}" on ExchangeJobTopic.
type JobPostedMessage struct {
	JobID             string   `json:"job_id"` // UUID
	JobNumber         string   `json:"job_number"`
	Kind              string   `json:"kind"`         // DELIVERY|RIDE
	PaymentMode       string   `json:"payment_mode"` // PREPAID|CASH_ON_COMPLETION
	Origin            GeoPoint `json:"origin"`
	EstimatedEarnings float64  `json:"estimated_earnings"`
	EstimatedMinutes  int      `json:"estimated_minutes"`
	PostedAt          string   `json:"posted_at"` // ISO-8601
	Envelope
}
