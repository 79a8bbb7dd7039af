// Package service runs the reminder: a single goroutine owns the scheduler
// and the refresh coordinator and serializes timer events with requests
// coming from the dashboard.
package service

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
	"github.com/petr-muller/jira-reminder/internal/reminder/refresh"
	"github.com/petr-muller/jira-reminder/internal/reminder/scheduler"
)

const (
	// TickInterval is how often the reminder rules are evaluated
	TickInterval = time.Minute
	// RefreshInterval is how often all buckets are refreshed
	RefreshInterval = time.Hour
)

// ErrStopped is returned by requests made after Run has returned
var ErrStopped = errors.New("reminder service is not running")

// Scheduler evaluates the reminder rules at a given time
type Scheduler interface {
	TickAt(ctx context.Context, t time.Time)
}

// Refresher fetches buckets
type Refresher interface {
	Refresh(ctx context.Context, initial bool) error
	Today(ctx context.Context) (issue.Bucket, error)
}

type requestKind int

const (
	refreshRequest requestKind = iota
	todayRequest
)

type request struct {
	ctx  context.Context
	kind requestKind
	done chan response
}

type response struct {
	bucket issue.Bucket
	err    error
}

// Service is the dispatch loop of the reminder
type Service struct {
	clock     clock.WithTicker
	scheduler Scheduler
	refresher Refresher

	requests chan request
	stopped  chan struct{}
}

// New creates a service driving scheduler and refresher with clk
func New(scheduler Scheduler, refresher Refresher, clk clock.WithTicker) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Service{
		clock:     clk,
		scheduler: scheduler,
		refresher: refresher,
		requests:  make(chan request),
		stopped:   make(chan struct{}),
	}
}

// Options holds the collaborators NewService wires together
type Options struct {
	Client   *jira.Client
	Queries  *jql.Builder
	Assignee string
	Display  refresh.Display
	Sink     notify.Sink
	// Clock defaults to the real clock
	Clock clock.WithTicker
}

// NewService wires a refresh coordinator and a scheduler sharing the today
// cache into a service
func NewService(opts Options) (*Service, error) {
	if opts.Client == nil {
		return nil, errors.New("JIRA client is required")
	}
	if opts.Queries == nil {
		return nil, errors.New("query builder is required")
	}
	if opts.Sink == nil {
		opts.Sink = notify.NewLog()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	coordinator := refresh.New(refresh.Config{
		Searcher: opts.Client,
		Links:    opts.Client,
		Queries:  opts.Queries,
		Assignee: opts.Assignee,
		Display:  opts.Display,
		Sink:     opts.Sink,
		Clock:    opts.Clock,
	})
	reminders := scheduler.New(opts.Client, opts.Queries, opts.Assignee, opts.Sink,
		scheduler.WithClock(opts.Clock),
		scheduler.WithTodayCache(coordinator),
	)

	return New(reminders, coordinator, opts.Clock), nil
}

// Run refreshes all buckets once and then serves timer events and requests
// until ctx is cancelled. It must be called at most once.
func (s *Service) Run(ctx context.Context) error {
	defer close(s.stopped)

	ticker := s.clock.NewTicker(TickInterval)
	defer ticker.Stop()
	refreshTicker := s.clock.NewTicker(RefreshInterval)
	defer refreshTicker.Stop()

	logrus.Info("Reminder service started")
	if err := s.refresher.Refresh(ctx, true); err != nil {
		logrus.WithError(err).Warn("Initial refresh failed")
	}

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reminder service stopped")
			return nil
		case t := <-ticker.C():
			s.scheduler.TickAt(ctx, t)
		case <-refreshTicker.C():
			if err := s.refresher.Refresh(ctx, false); err != nil {
				logrus.WithError(err).Warn("Periodic refresh failed")
			}
		case req := <-s.requests:
			req.done <- s.handle(req)
		}
	}
}

func (s *Service) handle(req request) response {
	switch req.kind {
	case refreshRequest:
		return response{err: s.refresher.Refresh(req.ctx, false)}
	case todayRequest:
		bucket, err := s.refresher.Today(req.ctx)
		return response{bucket: bucket, err: err}
	default:
		return response{err: fmt.Errorf("unknown request kind %d", req.kind)}
	}
}

func (s *Service) submit(ctx context.Context, kind requestKind) response {
	req := request{ctx: ctx, kind: kind, done: make(chan response, 1)}
	select {
	case s.requests <- req:
	case <-s.stopped:
		return response{err: ErrStopped}
	case <-ctx.Done():
		return response{err: ctx.Err()}
	}

	select {
	case resp := <-req.done:
		return resp
	case <-ctx.Done():
		return response{err: ctx.Err()}
	}
}

// Refresh asks the running service for a full refresh and waits for it
func (s *Service) Refresh(ctx context.Context) error {
	return s.submit(ctx, refreshRequest).err
}

// Today asks the running service for the today bucket
func (s *Service) Today(ctx context.Context) (issue.Bucket, error) {
	resp := s.submit(ctx, todayRequest)
	return resp.bucket, resp.err
}
