package ui

import (
	"context"
	"os/exec"
	"runtime"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
	"github.com/petr-muller/jira-reminder/internal/reminder/notify"
)

// BucketMsg replaces the bucket of the same kind on the dashboard
type BucketMsg issue.Bucket

// NotificationMsg shows a notification in the status line
type NotificationMsg notify.Notification

type refreshDoneMsg struct {
	err error
}

type todayMsg struct {
	bucket issue.Bucket
	err    error
}

type openDoneMsg struct {
	url string
	err error
}

func refreshCmd(actions Actions) tea.Cmd {
	return func() tea.Msg {
		return refreshDoneMsg{err: actions.Refresh(context.Background())}
	}
}

func todayCmd(actions Actions) tea.Cmd {
	return func() tea.Msg {
		bucket, err := actions.Today(context.Background())
		return todayMsg{bucket: bucket, err: err}
	}
}

func openCmd(open Opener, url string) tea.Cmd {
	return func() tea.Msg {
		return openDoneMsg{url: url, err: open(url)}
	}
}

func (m Model) openSelectedIssue() tea.Cmd {
	selected, ok := m.selectedIssue()
	if !ok || m.links == nil {
		return nil
	}
	return openCmd(m.open, m.links.IssueURL(selected.Key))
}

func (m Model) openMore() tea.Cmd {
	v := m.views[m.focus]
	if !v.fetched || v.bucket.MoreURL == "" {
		return nil
	}
	return openCmd(m.open, v.bucket.MoreURL)
}

// openCommand returns the command opening url in a browser on goos
func openCommand(goos, url string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// OpenURL opens url in the default browser without waiting for it
func OpenURL(url string) error {
	name, args := openCommand(runtime.GOOS, url)
	return exec.Command(name, args...).Start()
}

// Bridge forwards buckets and notifications from the service goroutine to a
// running program
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

// Attach sets the program receiving messages
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()

	if p == nil {
		logrus.Debugf("Dashboard not attached, dropping %T", msg)
		return
	}
	p.Send(msg)
}

// ShowBucket implements refresh.Display
func (b *Bridge) ShowBucket(bucket issue.Bucket) {
	b.send(BucketMsg(bucket))
}

// Notify implements notify.Sink
func (b *Bridge) Notify(n notify.Notification) {
	b.send(NotificationMsg(n))
}
