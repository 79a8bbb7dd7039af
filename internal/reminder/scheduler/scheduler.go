// Package scheduler decides, once per minute, whether the user should be
// reminded of today's work or nagged about not having finished anything.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
	"github.com/petr-muller/jira-reminder/internal/reminder/jql"
	"github.com/petr-muller/jira-reminder/internal/reminder/notify"
)

const (
	// Title is used for every notification raised by the reminder
	Title = "Jira Reminder"

	// MorningLimit caps the morning search
	MorningLimit = 10
	// DigestLines is the number of issues listed in the morning digest
	DigestLines = 5
	// EveningInterval is the minimum time between two evening checks
	EveningInterval = 30 * time.Minute

	// NagMessage is shown when nothing was closed today
	NagMessage = "No tasks completed today. Choose at least one and get it to Done 💪"

	digestDuration = 12 * time.Second
	nagDuration    = 10 * time.Second
	errorDuration  = 8 * time.Second
)

var (
	eveningStart = minuteOfDay(16, 30)
	eveningEnd   = minuteOfDay(19, 0)
)

func minuteOfDay(hour, minute int) int {
	return hour*60 + minute
}

// Searcher runs JQL searches
type Searcher interface {
	Search(ctx context.Context, jql string, maxResults int) ([]issue.Issue, error)
}

// TodayCache receives the issues found by the morning search
type TodayCache interface {
	Remember(issues []issue.Issue)
}

// MorningDue reports whether the morning digest runs at t: 10:00 and 10:01
// qualify, so both ticks around the hour may fire.
func MorningDue(t time.Time) bool {
	return t.Hour() == 10 && (t.Minute() == 0 || t.Minute() == 1)
}

// EveningDue reports whether the evening check runs at t. The wall clock must
// lie between 16:30 and 19:00 inclusive, compared at minute granularity, and
// the previous check (zero when none happened yet) must be at least
// EveningInterval old.
func EveningDue(t, last time.Time) bool {
	now := minuteOfDay(t.Hour(), t.Minute())
	if now < eveningStart || now > eveningEnd {
		return false
	}
	return last.IsZero() || t.Sub(last) >= EveningInterval
}

// Scheduler evaluates the reminder rules. It is not safe for concurrent use;
// the service calls it from a single goroutine.
type Scheduler struct {
	clock    clock.PassiveClock
	searcher Searcher
	queries  *jql.Builder
	assignee string
	sink     notify.Sink
	today    TodayCache

	lastMorningDigest time.Time
	lastEveningCheck  time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the real clock used by Tick
func WithClock(c clock.PassiveClock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithTodayCache hands the morning search results to c
func WithTodayCache(c TodayCache) Option {
	return func(s *Scheduler) {
		s.today = c
	}
}

// New creates a scheduler searching issues assigned to assignee
func New(searcher Searcher, queries *jql.Builder, assignee string, sink notify.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clock.RealClock{},
		searcher: searcher,
		queries:  queries,
		assignee: assignee,
		sink:     sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LastMorningDigest returns the time of the last successful morning search,
// zero if none ran
func (s *Scheduler) LastMorningDigest() time.Time {
	return s.lastMorningDigest
}

// LastEveningCheck returns the time of the last evening check, zero if none ran
func (s *Scheduler) LastEveningCheck() time.Time {
	return s.lastEveningCheck
}

// Tick evaluates the rules at the current time
func (s *Scheduler) Tick(ctx context.Context) {
	s.TickAt(ctx, s.clock.Now())
}

// TickAt evaluates both rules at t. The rules are independent: a failure in
// one never prevents the other from running.
func (s *Scheduler) TickAt(ctx context.Context, t time.Time) {
	logrus.Debugf("Tick at %s", t.Format(time.TimeOnly))

	// 10:00 and 10:01 both qualify; only the first successful search of the day counts
	if MorningDue(t) && !sameDay(s.lastMorningDigest, t) {
		logrus.Debug("Morning check triggered")
		s.morning(ctx, t)
	}

	if EveningDue(t, s.lastEveningCheck) {
		logrus.WithField("last", s.lastEveningCheck).Debug("Evening check triggered")
		s.evening(ctx, t)
	}
}

func (s *Scheduler) morning(ctx context.Context, t time.Time) {
	issues, err := s.searcher.Search(ctx, s.queries.ForDay(s.assignee, jql.Today), MorningLimit)
	if err != nil {
		s.failed("morning check", err)
		return
	}
	s.lastMorningDigest = t

	if s.today != nil {
		s.today.Remember(issues)
	}
	if len(issues) == 0 {
		logrus.Debug("Nothing due today")
		return
	}

	s.sink.Notify(notify.Notification{
		Title:    Title,
		Body:     Digest(issues),
		Severity: notify.Info,
		Duration: digestDuration,
	})
}

func (s *Scheduler) evening(ctx context.Context, t time.Time) {
	s.lastEveningCheck = t

	closed, err := s.searcher.Search(ctx, s.queries.ClosedToday(s.assignee), 1)
	if err != nil {
		s.failed("evening check", err)
		return
	}

	logrus.Debugf("Evening check: closed today %t", len(closed) > 0)
	if len(closed) > 0 {
		return
	}

	s.sink.Notify(notify.Notification{
		Title:    Title,
		Body:     NagMessage,
		Severity: notify.Info,
		Duration: nagDuration,
	})
}

func (s *Scheduler) failed(check string, err error) {
	logrus.WithError(err).Errorf("%s failed", check)
	s.sink.Notify(notify.Notification{
		Title:    Title,
		Body:     fmt.Sprintf("Update error: %v", err),
		Severity: notify.Warning,
		Duration: errorDuration,
	})
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Digest renders the morning notification body
func Digest(issues []issue.Issue) string {
	var b strings.Builder
	b.WriteString("Today's tasks:")
	for i, item := range issues {
		if i == DigestLines {
			fmt.Fprintf(&b, "\n…and %d more", len(issues)-DigestLines)
			break
		}
		fmt.Fprintf(&b, "\n%s: %s", item.Key, item.Summary)
	}
	return b.String()
}
