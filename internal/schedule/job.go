package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a standing natural-language question run on a cron schedule.
type Job struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"` // cron expression, 6-field with seconds
	Question  string     `json:"question"`
	Platform  string     `json:"platform,omitempty"`   // chat platform to notify ("slack", "telegram", ...)
	ChannelID string     `json:"channel_id,omitempty"` // destination channel on that platform
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`

	// Runtime field, not persisted
	EntryID cron.EntryID `json:"-"`
}

// Clone creates a deep copy of the job
func (j *Job) Clone() *Job {
	clone := *j
	if j.LastRun != nil {
		lastRun := *j.LastRun
		clone.LastRun = &lastRun
	}
	return &clone
}
