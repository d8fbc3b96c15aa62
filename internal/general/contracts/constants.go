package contracts

// Exchanges
const (
	ExchangeJobTopic       = "job_topic"
	ExchangeNotifyTopic    = "notify_topic"
	ExchangePositionFanout = "position_fanout"
)

// Queues
const (
	QueueJobPosted           = "job_posted"
	QueueJobStatus           = "job_status"
	QueueNotifications       = "notifications"
	QueuePositionUpdatesJobs = "position_updates_jobs"
)

// Routing patterns
const (
	RouteJobPostedPrefix  = "job.posted."  // {kind}
	RouteJobClaimedPrefix = "job.claimed." // {job_id}
	RouteJobStatusPrefix  = "job.status."  // {status}
	RouteNotifyPrefix     = "notify."      // {recipient_id}
)
