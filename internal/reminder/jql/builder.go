// Package jql renders the JQL expressions the reminder runs against JIRA.
//
// Every function here is pure: the same Options and assignee always produce
// byte-identical expressions.
package jql

import (
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	orderByDue      = "ORDER BY duedate ASC, updated DESC"
	orderByResolved = "ORDER BY resolutiondate DESC"

	notDone = "statusCategory != Done"
)

var (
	bracketedFieldRe   = regexp.MustCompile(`^cf\[\d+\]$`)
	customFieldIDRe    = regexp.MustCompile(`^customfield_(\d+)$`)
	quotedValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// DayShift selects the day ForDay builds an expression for
type DayShift int

const (
	Today    DayShift = 0
	Tomorrow DayShift = 1
)

// String returns the JQL function call selecting the start of the shifted day
func (d DayShift) String() string {
	switch d {
	case Today:
		return "startOfDay()"
	case Tomorrow:
		return "startOfDay('+1d')"
	default:
		return fmt.Sprintf("DayShift(%d)", int(d))
	}
}

// Options holds the configuration the expressions are built from
type Options struct {
	// ProjectKeys limits the search to these projects; empty means all projects
	ProjectKeys []string
	// IssueTypes limits the search to these issue type names
	IssueTypes []string
	// StartDateField is a custom field used as an alternative due date
	StartDateField string
	// DoneJQL replaces the synthesized "closed today" expression when not blank
	DoneJQL string
}

// Builder renders JQL expressions from Options
type Builder struct {
	projects       []string
	issueTypes     []string
	startDateField string
	doneOverride   string
}

// NewBuilder creates a builder. Project keys and issue types are treated as
// sets: duplicates are dropped and the order is normalized.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		projects:       normalizeSet(opts.ProjectKeys),
		issueTypes:     normalizeSet(opts.IssueTypes),
		startDateField: NormalizeField(opts.StartDateField),
		doneOverride:   strings.TrimSpace(opts.DoneJQL),
	}
}

func normalizeSet(values []string) []string {
	s := sets.New[string]()
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			s.Insert(value)
		}
	}
	return sets.List(s)
}

// NormalizeField turns a start date field identifier into a JQL field
// reference. "cf[NNNN]" is kept, "customfield_NNNN" becomes "cf[NNNN]" and
// anything else is assumed to be a valid field name already. An empty
// identifier yields an empty reference, meaning no start date clause.
func NormalizeField(field string) string {
	field = strings.TrimSpace(field)
	if field == "" || bracketedFieldRe.MatchString(field) {
		return field
	}
	if m := customFieldIDRe.FindStringSubmatch(field); m != nil {
		return fmt.Sprintf("cf[%s]", m[1])
	}
	return field
}

func quote(value string) string {
	return `"` + quotedValueEscaper.Replace(value) + `"`
}

func (b *Builder) projectClause() string {
	if len(b.projects) == 0 {
		return ""
	}
	return fmt.Sprintf("project in (%s)", strings.Join(b.projects, ", "))
}

func (b *Builder) issueTypeClause() string {
	if len(b.issueTypes) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(b.issueTypes))
	for _, t := range b.issueTypes {
		quoted = append(quoted, quote(t))
	}
	return fmt.Sprintf("issuetype in (%s)", strings.Join(quoted, ", "))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}

// BaseConstraints restricts the search to open issues of the configured
// projects and issue types assigned to assignee
func (b *Builder) BaseConstraints(assignee string) string {
	return joinNonEmpty(" AND ",
		b.projectClause(),
		fmt.Sprintf("assignee = %s", quote(assignee)),
		b.issueTypeClause(),
		notDone,
	)
}

// dateDisjunction renders "(a OR b)" where a is the duedate clause and b the
// same clause over the start date field, when one is configured
func (b *Builder) dateDisjunction(clause func(field string) string) string {
	parts := []string{clause("duedate")}
	if b.startDateField != "" {
		parts = append(parts, clause(b.startDateField))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Overdue matches open issues whose due date or start date lies before today
func (b *Builder) Overdue(assignee string) string {
	dates := b.dateDisjunction(func(field string) string {
		return fmt.Sprintf("(%s < startOfDay() AND %s is not EMPTY)", field, field)
	})
	return fmt.Sprintf("%s AND %s %s", b.BaseConstraints(assignee), dates, orderByDue)
}

// ForDay matches open issues due (or starting) today or tomorrow. Any shift
// other than Today or Tomorrow is a programming error and panics.
func (b *Builder) ForDay(assignee string, shift DayShift) string {
	if shift != Today && shift != Tomorrow {
		panic(fmt.Sprintf("jql: invalid day shift %d, must be Today (0) or Tomorrow (1)", int(shift)))
	}

	target := shift.String()
	dates := b.dateDisjunction(func(field string) string {
		return fmt.Sprintf("(%s = %s)", field, target)
	})
	return fmt.Sprintf("%s AND %s %s", b.BaseConstraints(assignee), dates, orderByDue)
}

// ClosedToday matches issues the assignee moved to Done today. A configured
// override is returned verbatim.
func (b *Builder) ClosedToday(assignee string) string {
	if b.doneOverride != "" {
		return b.doneOverride
	}

	filter := joinNonEmpty(" AND ",
		fmt.Sprintf("assignee = %s", quote(assignee)),
		b.projectClause(),
		"status CHANGED TO Done DURING (startOfDay(), now())",
	)
	return fmt.Sprintf("%s %s", filter, orderByResolved)
}
