package issue

import (
	"strings"
	"time"
)

// NoSummary is used when JIRA returns an issue without a summary
const NoSummary = "(no summary)"

// Issue represents a JIRA issue with the fields the reminder cares about
type Issue struct {
	Key      string    `yaml:"key"`
	Summary  string    `yaml:"summary"`
	DueDate  time.Time `yaml:"due_date,omitempty"`
	Type     string    `yaml:"type,omitempty"`
	Project  string    `yaml:"project,omitempty"`
	Priority string    `yaml:"priority,omitempty"`
	Status   string    `yaml:"status,omitempty"`
}

// BucketKind identifies one of the day buckets shown to the user
type BucketKind string

const (
	BucketOverdue  BucketKind = "overdue"
	BucketToday    BucketKind = "today"
	BucketTomorrow BucketKind = "tomorrow"
)

// Kinds lists the bucket kinds in the order they are refreshed and displayed
var Kinds = []BucketKind{BucketOverdue, BucketToday, BucketTomorrow}

// Title returns a human-readable heading for the bucket kind
func (k BucketKind) Title() string {
	switch k {
	case BucketOverdue:
		return "Overdue"
	case BucketToday:
		return "Today"
	case BucketTomorrow:
		return "Tomorrow"
	default:
		return string(k)
	}
}

// Bucket is one complete search result snapshot. It always replaces the
// previous bucket of the same kind.
type Bucket struct {
	Kind      BucketKind `yaml:"kind"`
	JQL       string     `yaml:"jql"`
	MoreURL   string     `yaml:"more_url"`
	FetchedAt time.Time  `yaml:"fetched_at"`
	Issues    []Issue    `yaml:"issues"`
}

// DueState classifies an issue's due date relative to a day
type DueState string

const (
	DueNone     DueState = "none"
	DueOverdue  DueState = "overdue"
	DueToday    DueState = "today"
	DueTomorrow DueState = "tomorrow"
	DueFuture   DueState = "future"
)

// DueState classifies the due date against the calendar day of now, in now's location
func (i Issue) DueState(now time.Time) DueState {
	if i.DueDate.IsZero() {
		return DueNone
	}

	due := startOfDay(i.DueDate, now.Location())
	today := startOfDay(now, now.Location())
	switch {
	case due.Before(today):
		return DueOverdue
	case due.Equal(today):
		return DueToday
	case due.Equal(today.AddDate(0, 0, 1)):
		return DueTomorrow
	default:
		return DueFuture
	}
}

// startOfDay returns midnight of t's calendar date in loc. Due dates carry no
// zone, so their calendar date is taken as-is.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// StatusCategory is a coarse grouping of workflow status names
type StatusCategory string

const (
	StatusDone       StatusCategory = "done"
	StatusInProgress StatusCategory = "inprogress"
	StatusTodo       StatusCategory = "todo"
	StatusOther      StatusCategory = "other"
)

// StatusCategory maps the status name onto a coarse category
func (i Issue) StatusCategory() StatusCategory {
	switch strings.ToLower(strings.TrimSpace(i.Status)) {
	case "done", "resolved", "closed", "accepted":
		return StatusDone
	case "in progress", "implementing", "in review":
		return StatusInProgress
	case "to do", "todo", "backlog", "open":
		return StatusTodo
	default:
		return StatusOther
	}
}

// FormatDue renders the due date for display, "-" when there is none
func (i Issue) FormatDue() string {
	if i.DueDate.IsZero() {
		return "-"
	}
	return i.DueDate.Format(time.DateOnly)
}
