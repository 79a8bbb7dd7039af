// Package report renders a one-shot snapshot of the reminder buckets for the
// status command.
package report

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"

	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
)

const maxSummaryWidth = 60

// Snapshot is the state of all buckets at one point in time
type Snapshot struct {
	GeneratedAt time.Time      `yaml:"generated_at"`
	Assignee    string         `yaml:"assignee"`
	Buckets     []issue.Bucket `yaml:"buckets"`
}

// Collector gathers published buckets, replacing earlier buckets of the same kind
type Collector struct {
	buckets map[issue.BucketKind]issue.Bucket
}

func (c *Collector) ShowBucket(b issue.Bucket) {
	if c.buckets == nil {
		c.buckets = map[issue.BucketKind]issue.Bucket{}
	}
	c.buckets[b.Kind] = b
}

// Buckets returns the collected buckets in display order
func (c *Collector) Buckets() []issue.Bucket {
	var result []issue.Bucket
	for _, kind := range issue.Kinds {
		if b, ok := c.buckets[kind]; ok {
			result = append(result, b)
		}
	}
	return result
}

// WriteTable prints every bucket as a table, coloring due dates by urgency
func WriteTable(w io.Writer, snapshot Snapshot) error {
	title := color.New(color.Bold, color.Underline)
	faint := color.New(color.Faint)
	empty := color.New(color.Faint, color.Italic)

	for _, bucket := range snapshot.Buckets {
		if _, err := title.Fprint(w, bucket.Kind.Title()); err != nil {
			return err
		}
		_, _ = faint.Fprintf(w, " - %d %s\n", len(bucket.Issues), plural(len(bucket.Issues), "issue", "issues"))

		if len(bucket.Issues) == 0 {
			_, _ = empty.Fprint(w, " none\n\n")
			continue
		}

		tbl := uitable.New()
		tbl.MaxColWidth = maxSummaryWidth
		tbl.Separator = "  "
		tbl.AddRow("KEY", "DUE", "SUMMARY", "STATUS", "PRIORITY")
		for _, i := range bucket.Issues {
			tbl.AddRow(i.Key, dueColor(i.DueState(snapshot.GeneratedAt)).Sprint(i.FormatDue()), i.Summary, i.Status, i.Priority)
		}
		if _, err := fmt.Fprintln(w, tbl); err != nil {
			return err
		}
		if bucket.MoreURL != "" {
			_, _ = faint.Fprintf(w, "More: %s\n", bucket.MoreURL)
		}
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

// WriteYAML prints the snapshot as a YAML document
func WriteYAML(w io.Writer, snapshot Snapshot) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return encoder.Close()
}

// Formats lists the accepted values of the status --output flag
var Formats = []string{"table", "yaml"}

// Write renders the snapshot in one of Formats
func Write(w io.Writer, format string, snapshot Snapshot) error {
	switch format {
	case "table":
		return WriteTable(w, snapshot)
	case "yaml":
		return WriteYAML(w, snapshot)
	default:
		return fmt.Errorf("unknown output format %q, must be one of %v", format, Formats)
	}
}

// ValidFormat reports whether format is one of Formats
func ValidFormat(format string) bool {
	return slices.Contains(Formats, format)
}

func dueColor(state issue.DueState) *color.Color {
	switch state {
	case issue.DueOverdue:
		return color.New(color.FgHiRed, color.Bold)
	case issue.DueToday:
		return color.New(color.FgHiYellow)
	case issue.DueTomorrow:
		return color.New(color.FgGreen)
	default:
		return color.New(color.Faint)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
