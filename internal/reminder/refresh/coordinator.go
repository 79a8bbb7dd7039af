// Package refresh fetches the overdue, today and tomorrow buckets and
// publishes them to a display.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
	"github.com/petr-muller/jira-reminder/internal/reminder/jira"
	"github.com/petr-muller/jira-reminder/internal/reminder/jql"
	"github.com/petr-muller/jira-reminder/internal/reminder/notify"
	"github.com/petr-muller/jira-reminder/internal/reminder/scheduler"
)

const (
	// Limit caps every bucket search
	Limit = 50

	updatedDuration = 3 * time.Second
	errorDuration   = 8 * time.Second
)

// Searcher runs JQL searches
type Searcher interface {
	Search(ctx context.Context, jql string, maxResults int) ([]issue.Issue, error)
}

// Linker builds browser links for search results
type Linker interface {
	SearchURL(jql string) string
}

// Display shows buckets to the user. ShowBucket always replaces the bucket of
// the same kind.
type Display interface {
	ShowBucket(issue.Bucket)
}

// DisplayFunc adapts a function to the Display interface
type DisplayFunc func(issue.Bucket)

func (f DisplayFunc) ShowBucket(b issue.Bucket) {
	f(b)
}

// Coordinator refreshes buckets and keeps the today cache. Like the
// scheduler it is driven from a single goroutine.
type Coordinator struct {
	searcher Searcher
	links    Linker
	queries  *jql.Builder
	assignee string
	display  Display
	sink     notify.Sink
	clock    clock.PassiveClock

	today     []issue.Issue
	todayTime time.Time
}

// Config holds the collaborators of a Coordinator
type Config struct {
	Searcher Searcher
	Links    Linker
	Queries  *jql.Builder
	Assignee string
	Display  Display
	Sink     notify.Sink
	// Clock defaults to the real clock
	Clock clock.PassiveClock
}

// New creates a coordinator
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		searcher: cfg.Searcher,
		links:    cfg.Links,
		queries:  cfg.Queries,
		assignee: cfg.Assignee,
		display:  cfg.Display,
		sink:     cfg.Sink,
		clock:    cfg.Clock,
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}
	if c.display == nil {
		c.display = DisplayFunc(func(issue.Bucket) {})
	}
	return c
}

// Query returns the JQL expression selecting the issues of a bucket kind
func (c *Coordinator) Query(kind issue.BucketKind) string {
	switch kind {
	case issue.BucketOverdue:
		return c.queries.Overdue(c.assignee)
	case issue.BucketToday:
		return c.queries.ForDay(c.assignee, jql.Today)
	case issue.BucketTomorrow:
		return c.queries.ForDay(c.assignee, jql.Tomorrow)
	default:
		panic(fmt.Sprintf("refresh: unknown bucket kind %q", kind))
	}
}

func (c *Coordinator) fetch(ctx context.Context, kind issue.BucketKind) (issue.Bucket, error) {
	query := c.Query(kind)
	issues, err := c.searcher.Search(ctx, query, Limit)
	if err != nil {
		return issue.Bucket{}, err
	}
	return issue.Bucket{
		Kind:      kind,
		JQL:       query,
		MoreURL:   c.links.SearchURL(query),
		FetchedAt: c.clock.Now(),
		Issues:    issues,
	}, nil
}

// Refresh fetches all buckets in order and publishes each one as soon as it
// arrives. When a search fails the remaining buckets are skipped, the user is
// notified once and the error is returned; buckets published before the
// failure stay on display. Only a successful non-initial refresh tells the
// user that the data was updated.
func (c *Coordinator) Refresh(ctx context.Context, initial bool) error {
	logger := logrus.WithField("initial", initial)
	logger.Debug("Refreshing buckets")

	for _, kind := range issue.Kinds {
		bucket, err := c.fetch(ctx, kind)
		if err != nil {
			c.failed(err)
			return fmt.Errorf("failed to refresh %s issues: %w", kind, err)
		}

		if kind == issue.BucketToday {
			c.today, c.todayTime = bucket.Issues, bucket.FetchedAt
		}
		logger.WithField("bucket", kind).Debugf("Fetched %d issues", len(bucket.Issues))
		c.display.ShowBucket(bucket)
	}

	if !initial {
		c.sink.Notify(notify.Notification{
			Title:    scheduler.Title,
			Body:     "Data updated",
			Severity: notify.Info,
			Duration: updatedDuration,
		})
	}
	return nil
}

// Today returns the cached today bucket, fetching it when the cache is empty
func (c *Coordinator) Today(ctx context.Context) (issue.Bucket, error) {
	query := c.Query(issue.BucketToday)
	if len(c.today) > 0 {
		return issue.Bucket{
			Kind:      issue.BucketToday,
			JQL:       query,
			MoreURL:   c.links.SearchURL(query),
			FetchedAt: c.todayTime,
			Issues:    c.today,
		}, nil
	}

	bucket, err := c.fetch(ctx, issue.BucketToday)
	if err != nil {
		c.failed(err)
		return issue.Bucket{}, fmt.Errorf("failed to fetch today issues: %w", err)
	}
	c.today, c.todayTime = bucket.Issues, bucket.FetchedAt
	return bucket, nil
}

// Remember replaces the cached today issues
func (c *Coordinator) Remember(issues []issue.Issue) {
	c.today, c.todayTime = issues, c.clock.Now()
}

func (c *Coordinator) failed(err error) {
	body := fmt.Sprintf("Error: %v", err)
	var httpErr *jira.HTTPError
	if errors.As(err, &httpErr) {
		body = fmt.Sprintf("JIRA HTTP error: %v", err)
		logrus.WithError(err).WithField("status", httpErr.StatusCode).Error("JIRA HTTP error during refresh")
	} else {
		logrus.WithError(err).Error("Unexpected error during refresh")
	}

	c.sink.Notify(notify.Notification{
		Title:    scheduler.Title,
		Body:     body,
		Severity: notify.Critical,
		Duration: errorDuration,
	})
}
