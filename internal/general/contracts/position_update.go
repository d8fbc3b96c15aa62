package contracts

import "time"

// PositionUpdateMessage is broadcast by Tracking Service for every accepted
// position report. Exchange: ExchangePositionFanout (fanout, no routing key).
// DistanceKM and EtaMinutes are present only when the worker holds a job:
// they measure the distance to the current waypoint and the derived ETA.
type PositionUpdateMessage struct {
	WorkerID       string    `json:"worker_id"`
	JobID          string    `json:"job_id,omitempty"`
	JobStatus      string    `json:"job_status,omitempty"`
	Location       GeoPoint  `json:"location"`
	SpeedKMH       float64   `json:"speed_kmh,omitempty"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	DistanceKM     *float64  `json:"distance_km,omitempty"`
	EtaMinutes     *float64  `json:"eta_minutes,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	Envelope
}
