// Package ui is the terminal dashboard of the reminder.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
)

const (
	// maxRows limits the visible rows of each table
	maxRows = 8

	helpText = "enter: open issue • m: show more • r: refresh • t: today • tab: switch table • q: quit"
)

var columnTitles = []string{"Key", "Summary", "Due", "Type", "Priority", "Status"}

// extraDistribution is the share of spare terminal width each column receives
var extraDistribution = map[string]float64{
	"Key":      0.05,
	"Summary":  0.65,
	"Due":      0.0,
	"Type":     0.1,
	"Priority": 0.05,
	"Status":   0.15,
}

// Actions are the requests the dashboard sends to the running service
type Actions interface {
	Refresh(ctx context.Context) error
	Today(ctx context.Context) (issue.Bucket, error)
}

// Linker builds browser links for single issues
type Linker interface {
	IssueURL(key string) string
}

// Opener opens a URL in the user's browser
type Opener func(url string) error

// bucketView is one of the three tables
type bucketView struct {
	kind    issue.BucketKind
	bucket  issue.Bucket
	fetched bool
	table   table.Model
	spinner spinner.Model
}

// Model is the dashboard model
type Model struct {
	views   []bucketView
	focus   int
	actions Actions
	links   Linker
	open    Opener
	now     func() time.Time

	status string
	busy   bool
	width  int
	height int
}

// NewModel creates the dashboard. Buckets arrive later as BucketMsg.
func NewModel(actions Actions, links Linker, open Opener) Model {
	if open == nil {
		open = OpenURL
	}

	m := Model{
		actions: actions,
		links:   links,
		open:    open,
		now:     time.Now,
		status:  "Loading…",
	}
	for _, kind := range issue.Kinds {
		t := table.New(
			table.WithColumns(columnsFor(nil, 0)),
			table.WithHeight(3),
		)
		m.views = append(m.views, bucketView{
			kind:    kind,
			bucket:  issue.Bucket{Kind: kind},
			table:   t,
			spinner: spinner.New(spinner.WithSpinner(spinner.Points)),
		})
	}
	m.setFocus(0)
	return m
}

// Init starts the loading spinners
func (m Model) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.views))
	for _, v := range m.views {
		cmds = append(cmds, v.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.views {
			m.updateTable(i)
		}
		return m, nil
	case BucketMsg:
		m.setBucket(issue.Bucket(msg))
		return m, nil
	case NotificationMsg:
		m.status = msg.Body
		return m, nil
	case refreshDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Refresh failed: %v", msg.err)
		}
		return m, nil
	case todayMsg:
		m.busy = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Failed to load today's tasks: %v", msg.err)
			return m, nil
		}
		m.setBucket(msg.bucket)
		m.setFocus(m.indexOf(issue.BucketToday))
		m.status = fmt.Sprintf("%d task(s) due today", len(msg.bucket.Issues))
		return m, nil
	case openDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Failed to open %s: %v", msg.url, msg.err)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.setFocus((m.focus + 1) % len(m.views))
			return m, nil
		case "shift+tab":
			m.setFocus((m.focus + len(m.views) - 1) % len(m.views))
			return m, nil
		case "enter":
			return m, m.openSelectedIssue()
		case "m":
			return m, m.openMore()
		case "r":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Refreshing…"
			return m, refreshCmd(m.actions)
		case "t":
			if m.busy {
				return m, nil
			}
			m.busy = true
			return m, todayCmd(m.actions)
		}
	}

	var cmds []tea.Cmd
	for i := range m.views {
		var cmd tea.Cmd
		m.views[i].table, cmd = m.views[i].table.Update(msg)
		cmds = append(cmds, cmd)
		if !m.views[i].fetched {
			m.views[i].spinner, cmd = m.views[i].spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	m.updateSelectionStyle(m.focus)
	return m, tea.Batch(cmds...)
}

// View renders the model
func (m Model) View() string {
	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)
	s.WriteString(headerStyle.Render("Jira Reminder"))
	s.WriteString("\n")

	for i, v := range m.views {
		s.WriteString(m.renderTitle(i))
		s.WriteString("\n")
		switch {
		case !v.fetched:
			s.WriteString(v.spinner.View())
		case len(v.bucket.Issues) == 0:
			s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true).Render("Nothing here"))
		default:
			s.WriteString(v.table.View())
		}
		s.WriteString("\n\n")
	}

	if selected, ok := m.selectedIssue(); ok {
		summaryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		s.WriteString(summaryStyle.Render(fmt.Sprintf("Summary: %s", selected.Summary)))
		s.WriteString(" ")
		s.WriteString(statusStyle(selected.StatusCategory()).Render(fmt.Sprintf("[%s]", selected.Status)))
		s.WriteString("\n")
	}

	if m.status != "" {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Render(m.status))
		s.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginTop(1)
	s.WriteString(helpStyle.Render(helpText))

	return s.String()
}

func (m Model) renderTitle(i int) string {
	v := m.views[i]
	title := v.kind.Title()
	if v.fetched {
		title = fmt.Sprintf("%s (%d)", title, len(v.bucket.Issues))
		if !v.bucket.FetchedAt.IsZero() {
			title += fmt.Sprintf(" · fetched %s ago", formatDuration(m.now().Sub(v.bucket.FetchedAt)))
		}
	}

	style := lipgloss.NewStyle().Bold(true).Foreground(kindColor(v.kind))
	if i == m.focus {
		style = style.Underline(true)
		title = "▸ " + title
	} else {
		title = "  " + title
	}
	return style.Render(title)
}

func (m *Model) indexOf(kind issue.BucketKind) int {
	for i, v := range m.views {
		if v.kind == kind {
			return i
		}
	}
	return 0
}

// setBucket replaces the bucket of the same kind
func (m *Model) setBucket(bucket issue.Bucket) {
	i := m.indexOf(bucket.Kind)
	m.views[i].bucket = bucket
	m.views[i].fetched = true
	m.updateTable(i)
}

func (m *Model) setFocus(i int) {
	for j := range m.views {
		if j == i {
			m.views[j].table.Focus()
		} else {
			m.views[j].table.Blur()
		}
	}
	m.focus = i
	m.updateSelectionStyle(i)
}

func (m *Model) selectedIssue() (issue.Issue, bool) {
	v := m.views[m.focus]
	cursor := v.table.Cursor()
	if !v.fetched || cursor < 0 || cursor >= len(v.bucket.Issues) {
		return issue.Issue{}, false
	}
	return v.bucket.Issues[cursor], true
}

// updateTable updates the rows, height and columns of one table
func (m *Model) updateTable(i int) {
	v := &m.views[i]

	rows := make([]table.Row, 0, len(v.bucket.Issues))
	for _, item := range v.bucket.Issues {
		rows = append(rows, issueToRow(item))
	}
	v.table.SetColumns(columnsFor(v.bucket.Issues, m.width))
	v.table.SetRows(rows)
	// the header takes two lines including its border
	v.table.SetHeight(max(min(len(rows), maxRows), 1) + 2)
	// an empty table leaves the cursor at -1
	if v.table.Cursor() < 0 && len(rows) > 0 {
		v.table.SetCursor(0)
	}
	m.updateSelectionStyle(i)
}

// issueToRow converts an issue to a table row
func issueToRow(i issue.Issue) table.Row {
	return table.Row{i.Key, i.Summary, i.FormatDue(), i.Type, i.Priority, i.Status}
}

// columnsFor calculates column widths from the data, spreading spare
// terminal width over the columns
func columnsFor(issues []issue.Issue, width int) []table.Column {
	widths := make(map[string]int, len(columnTitles))
	for _, title := range columnTitles {
		widths[title] = len(title)
	}
	for _, i := range issues {
		for idx, cell := range issueToRow(i) {
			title := columnTitles[idx]
			widths[title] = max(widths[title], lipgloss.Width(cell))
		}
	}

	total := 0
	for title := range widths {
		widths[title] += 2
		total += widths[title]
	}

	// Reserve space for table borders and padding
	extra := width - 10 - total
	columns := make([]table.Column, 0, len(columnTitles))
	for _, title := range columnTitles {
		w := widths[title]
		if extra > 0 {
			w += int(float64(extra) * extraDistribution[title])
		}
		columns = append(columns, table.Column{Title: title, Width: w})
	}
	return columns
}

// updateSelectionStyle colors the selection of one table by the due state of
// the selected issue
func (m *Model) updateSelectionStyle(i int) {
	v := &m.views[i]
	styles := table.DefaultStyles()

	background := lipgloss.Color("240")
	cursor := v.table.Cursor()
	if cursor >= 0 && cursor < len(v.bucket.Issues) {
		background = dueColor(v.bucket.Issues[cursor].DueState(m.now()))
	}
	if !v.table.Focused() {
		styles.Selected = lipgloss.NewStyle()
	} else {
		styles.Selected = styles.Selected.
			Foreground(lipgloss.Color("230")).
			Background(background).
			Bold(true)
	}
	v.table.SetStyles(styles)
}

func dueColor(state issue.DueState) lipgloss.Color {
	switch state {
	case issue.DueOverdue:
		return lipgloss.Color("52")
	case issue.DueToday:
		return lipgloss.Color("130")
	case issue.DueTomorrow:
		return lipgloss.Color("22")
	default:
		return lipgloss.Color("240")
	}
}

func kindColor(kind issue.BucketKind) lipgloss.Color {
	switch kind {
	case issue.BucketOverdue:
		return lipgloss.Color("196")
	case issue.BucketToday:
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("46")
	}
}

func statusStyle(category issue.StatusCategory) lipgloss.Style {
	switch category {
	case issue.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	case issue.StatusInProgress:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	case issue.StatusTodo:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	}
}

// formatDuration formats a duration into a short human-readable string
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
