package models

// JobKind identifies a ScheduledJob's recurrence behavior (§3, §6).
type JobKind string

const (
	JobOnce     JobKind = "once"
	JobDaily    JobKind = "daily"
	JobPeriodic JobKind = "periodic"
)

// MaxActionBytes bounds a job's action text.
const MaxActionBytes = 256

// ScheduledJob is a persisted, durable timer. Ids are stable across reboot
// and increase within a run. No id counter is persisted: after a reboot,
// allocation resumes one past the highest stored id, so the id of a
// deleted job that was the highest can be issued again.
type ScheduledJob struct {
	ID             uint64  `yaml:"id"`
	Kind           JobKind `yaml:"kind"`
	TriggerSpec    string  `yaml:"trigger_spec"`
	Action         string  `yaml:"action"`
	NextFireEpoch  int64   `yaml:"next_fire_epoch"`
	CreationEpoch  int64   `yaml:"creation_epoch"`
	Active         bool    `yaml:"active"`
	DailyHour      int     `yaml:"daily_hour,omitempty"`
	DailyMinute    int     `yaml:"daily_minute,omitempty"`
	IntervalSecs   int64   `yaml:"interval_secs,omitempty"`
}
