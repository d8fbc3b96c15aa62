package contracts

import "time"

// WSJobStatusUpdate mirrors milestone updates sent over the per-job stream.
type WSJobStatusUpdate struct {
	Type      string       `json:"type"` // "job_status_update"
	JobID     string       `json:"job_id"`
	JobNumber string       `json:"job_number,omitempty"`
	Status    string       `json:"status"`
	Worker    *WorkerBrief `json:"worker_info,omitempty"`
	Envelope
}

// WSWorkerPositionUpdate mirrors live positions sent over the per-job stream.
// Every applied report carries the distance to the current waypoint and the
// ETA derived from the configured average speed.
type WSWorkerPositionUpdate struct {
	Type       string    `json:"type"` // "worker_position_update"
	JobID      string    `json:"job_id"`
	JobStatus  string    `json:"job_status,omitempty"`
	Location   GeoPoint  `json:"location"`
	SpeedKMH   float64   `json:"speed_kmh,omitempty"`
	DistanceKM *float64  `json:"distance_km,omitempty"`
	EtaMinutes *float64  `json:"eta_minutes,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	Envelope
}

// WSProximityAlert is sent once per leg when the worker is about to arrive.
type WSProximityAlert struct {
	Type           string  `json:"type"` // "proximity_alert"
	JobID          string  `json:"job_id"`
	Leg            string  `json:"leg"` // PICKUP|DROPOFF
	EtaMinutes     float64 `json:"eta_minutes"`
	DistanceKM     float64 `json:"distance_km"`
	FiredAt        string  `json:"fired_at"` // ISO-8601
	Envelope
}

// WSBoardEvent mirrors live board changes: a new posting or a removal after
// a claim or cancellation.
type WSBoardEvent struct {
	Type  string            `json:"type"` // "job_posted" | "job_removed"
	JobID string            `json:"job_id"`
	Entry *JobPostedMessage `json:"entry,omitempty"` // present for "job_posted"
	Envelope
}
