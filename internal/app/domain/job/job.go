// Package job defines the persistent Job Definition and its trigger variant.
package job

import "time"

// TriggerKind tags which variant a Trigger carries.
type TriggerKind string

const (
	TriggerCron     TriggerKind = "cron"
	TriggerInterval TriggerKind = "interval"
	TriggerOneShot  TriggerKind = "one_shot"
)

// Trigger is a tagged variant: exactly one of the kind-specific fields is
// meaningful, selected by Kind.
type Trigger struct {
	Kind TriggerKind

	// TriggerCron
	CronExpression string // full 5-field expression; takes precedence over the individual fields below
	Minute         string
	Hour           string
	DayOfWeek      string

	// TriggerInterval
	IntervalMinutes int
	IntervalHours   int
	IntervalDays    int

	// TriggerOneShot
	At                time.Time
	LatenessTolerance time.Duration
}

// IntervalDuration returns the total interval as a time.Duration.
func (t Trigger) IntervalDuration() time.Duration {
	total := t.IntervalMinutes + t.IntervalHours*60 + t.IntervalDays*1440
	return time.Duration(total) * time.Minute
}

// Definition is a named, persistent binding of a Trigger to an immutable
// configuration snapshot.
type Definition struct {
	ID     string
	Trigger Trigger
	// ConfigJSON is the serialized config.Config snapshot taken at creation
	// time; later edits to process defaults never mutate an existing job.
	ConfigJSON []byte

	NextFireTime time.Time
	LastFireTime time.Time
	LastError    string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Completed is set once a TriggerOneShot job has fired (or has been
	// skipped past its lateness tolerance) and should no longer be dispatched.
	Completed bool
}
