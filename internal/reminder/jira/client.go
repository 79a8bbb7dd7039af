package jira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andygrunwald/go-jira"
	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"

	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
)

const (
	// DefaultTimeout bounds a single search call
	DefaultTimeout = 30 * time.Second

	searchPath   = "rest/api/3/search/jql"
	maxErrorBody = 4096
)

var searchFields = []string{"summary", "duedate", "issuetype", "assignee", "project", "priority", "status"}

// Options configures a Client
type Options struct {
	BaseURL  string
	Email    string
	APIToken string
	// Timeout defaults to DefaultTimeout
	Timeout time.Duration
	// Transport defaults to http.DefaultTransport
	Transport http.RoundTripper
}

// Client runs JQL searches against the JIRA Cloud REST API
type Client struct {
	baseURL    string
	jiraClient *jira.Client
}

// NewClient creates a client authenticating with the user's email and API token
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("JIRA base URL must not be empty")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := &http.Client{
		Transport: &jira.BasicAuthTransport{
			Username:  opts.Email,
			Password:  opts.APIToken,
			Transport: opts.Transport,
		},
		Timeout: timeout,
	}

	jiraClient, err := jira.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA client: %w", err)
	}

	logrus.WithField("endpoint", baseURL).Debugf("JIRA client initialized for user %s", opts.Email)
	return &Client{
		baseURL:    baseURL,
		jiraClient: jiraClient,
	}, nil
}

// searchRequest is the POST body of the search endpoint
type searchRequest struct {
	JQL        string   `json:"jql"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

// searchQuery is the GET equivalent of searchRequest
type searchQuery struct {
	JQL        string `url:"jql"`
	MaxResults int    `url:"maxResults"`
	Fields     string `url:"fields"`
}

type searchResult struct {
	Issues []searchIssue `json:"issues"`
}

type searchIssue struct {
	Key    string         `json:"key"`
	Fields searchFieldSet `json:"fields"`
}

type searchFieldSet struct {
	Summary  string          `json:"summary"`
	DueDate  string          `json:"duedate"`
	Type     *jira.IssueType `json:"issuetype"`
	Project  *jira.Project   `json:"project"`
	Priority *jira.Priority  `json:"priority"`
	Status   *jira.Status    `json:"status"`
}

// Search executes a JQL query and returns at most maxResults issues.
//
// The query is sent as a POST. When JIRA answers 404 or 405 the same search
// is sent once more as a GET with the parameters in the query string; the
// outcome of that second call is final.
func (c *Client) Search(ctx context.Context, jql string, maxResults int) ([]issue.Issue, error) {
	logger := logrus.WithField("maxResults", maxResults)
	logger.Debugf("JQL: %s", jql)

	req, err := c.jiraClient.NewRequestWithContext(ctx, http.MethodPost, searchPath, searchRequest{
		JQL:        jql,
		MaxResults: maxResults,
		Fields:     searchFields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	result, err := c.do(req)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.fallbackAllowed() {
		logger.WithField("status", httpErr.StatusCode).Warn("POST search not accepted, trying GET fallback")
		result, err = c.searchWithGet(ctx, jql, maxResults)
	}
	if err != nil {
		logger.WithError(err).Error("JIRA search failed")
		return nil, err
	}

	issues := make([]issue.Issue, 0, len(result.Issues))
	for _, found := range result.Issues {
		converted, err := convertIssue(found)
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		issues = append(issues, converted)
	}
	logger.Debugf("JIRA search returned %d issues", len(issues))

	return issues, nil
}

func (c *Client) searchWithGet(ctx context.Context, jql string, maxResults int) (*searchResult, error) {
	params, err := query.Values(searchQuery{
		JQL:        jql,
		MaxResults: maxResults,
		Fields:     strings.Join(searchFields, ","),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search parameters: %w", err)
	}

	req, err := c.jiraClient.NewRequestWithContext(ctx, http.MethodGet, searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	return c.do(req)
}

// do sends the request and sorts failures into HTTPError, TransportError and DecodeError
func (c *Client) do(req *http.Request) (*searchResult, error) {
	req.Header.Set("Accept", "application/json")

	var result searchResult
	resp, err := c.jiraClient.Do(req, &result)
	if resp != nil {
		logrus.Debugf("HTTP %d %s %s", resp.StatusCode, req.Method, req.URL.Path)
	}
	if err == nil {
		return &result, nil
	}

	if resp == nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       readErrorBody(resp.Body),
		}
	}

	return nil, &DecodeError{Err: err}
}

func readErrorBody(body io.ReadCloser) string {
	if body == nil {
		return ""
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// convertIssue converts a search result entry to our Issue
func convertIssue(found searchIssue) (issue.Issue, error) {
	if found.Key == "" {
		return issue.Issue{}, errors.New("issue without a key")
	}

	fields := found.Fields
	result := issue.Issue{
		Key:     found.Key,
		Summary: fields.Summary,
	}
	if result.Summary == "" {
		result.Summary = issue.NoSummary
	}

	if fields.DueDate != "" {
		due, err := time.Parse(time.DateOnly, fields.DueDate)
		if err != nil {
			return issue.Issue{}, fmt.Errorf("failed to parse due date of %s: %w", found.Key, err)
		}
		result.DueDate = due
	}

	if fields.Type != nil {
		result.Type = fields.Type.Name
	}
	if fields.Project != nil {
		result.Project = fields.Project.Key
	}
	if fields.Priority != nil {
		result.Priority = fields.Priority.Name
	}
	if fields.Status != nil {
		result.Status = fields.Status.Name
	}

	return result, nil
}

// JiraURL returns the base URL of the JIRA instance
func (c *Client) JiraURL() string {
	return c.baseURL
}

// IssueURL returns the browser URL of a single issue
func (c *Client) IssueURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// SearchURL returns the browser URL listing all issues matching jql
func (c *Client) SearchURL(jql string) string {
	return c.baseURL + "/issues/?jql=" + url.QueryEscape(jql)
}

// ValidateJQL checks a JQL expression by running it with a limit of 1
func (c *Client) ValidateJQL(ctx context.Context, jql string) error {
	if _, err := c.Search(ctx, jql, 1); err != nil {
		return fmt.Errorf("invalid JQL query: %w", err)
	}
	return nil
}
