package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petr-muller/jira-reminder/internal/reminder/issue"
)

const searchResponse = `{
  "issues": [
    {
      "key": "ABC-1",
      "fields": {
        "summary": "Solder the board",
        "duedate": "2025-11-09",
        "issuetype": {"name": "Sub-task - HW"},
        "project": {"key": "ABC"},
        "priority": {"name": "High"},
        "status": {"name": "In Progress"}
      }
    },
    {
      "key": "ABC-2",
      "fields": {
        "duedate": null,
        "status": {"name": "To Do"}
      }
    }
  ]
}`

// fakeJira records the search calls it receives and answers POST and GET
// with the configured status codes
type fakeJira struct {
	postStatus int
	getStatus  int
	body       string

	mu    sync.Mutex
	posts []searchRequest
	gets  []map[string]string
	auth  []string
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/rest/api/3/search/jql" {
		http.NotFound(w, r)
		return
	}

	user, password, _ := r.BasicAuth()
	f.mu.Lock()
	f.auth = append(f.auth, user+":"+password)

	status := http.StatusMethodNotAllowed
	switch r.Method {
	case http.MethodPost:
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.posts = append(f.posts, req)
		status = f.postStatus
	case http.MethodGet:
		q := r.URL.Query()
		f.gets = append(f.gets, map[string]string{
			"jql":        q.Get("jql"),
			"maxResults": q.Get("maxResults"),
			"fields":     q.Get("fields"),
		})
		status = f.getStatus
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusOK {
		_, _ = fmt.Fprint(w, f.body)
		return
	}
	_, _ = fmt.Fprintf(w, `{"errorMessages":["status %d"]}`, status)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:  server.URL + "/",
		Email:    "user@example.com",
		APIToken: "secret",
	})
	require.NoError(t, err)
	return client
}

func TestSearchPost(t *testing.T) {
	fake := &fakeJira{postStatus: http.StatusOK, getStatus: http.StatusOK, body: searchResponse}
	client := newTestClient(t, fake)

	issues, err := client.Search(context.Background(), "assignee = currentUser()", 50)
	require.NoError(t, err)

	expected := []issue.Issue{
		{
			Key:      "ABC-1",
			Summary:  "Solder the board",
			DueDate:  time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC),
			Type:     "Sub-task - HW",
			Project:  "ABC",
			Priority: "High",
			Status:   "In Progress",
		},
		{
			Key:     "ABC-2",
			Summary: issue.NoSummary,
			Status:  "To Do",
		},
	}
	assert.Equal(t, expected, issues)

	require.Len(t, fake.posts, 1)
	assert.Empty(t, fake.gets)
	assert.Equal(t, "assignee = currentUser()", fake.posts[0].JQL)
	assert.Equal(t, 50, fake.posts[0].MaxResults)
	assert.Equal(t, searchFields, fake.posts[0].Fields)
	assert.Equal(t, []string{"user@example.com:secret"}, fake.auth)
}

func TestSearchFallback(t *testing.T) {
	tests := []struct {
		name         string
		postStatus   int
		getStatus    int
		expectedGets int
		expectedCode int
		expectIssues bool
		expectUnauth bool
	}{
		{
			name:         "POST accepted",
			postStatus:   http.StatusOK,
			getStatus:    http.StatusOK,
			expectIssues: true,
		},
		{
			name:         "POST not found falls back to GET",
			postStatus:   http.StatusNotFound,
			getStatus:    http.StatusOK,
			expectedGets: 1,
			expectIssues: true,
		},
		{
			name:         "POST not allowed falls back to GET",
			postStatus:   http.StatusMethodNotAllowed,
			getStatus:    http.StatusOK,
			expectedGets: 1,
			expectIssues: true,
		},
		{
			name:         "fallback failure is final",
			postStatus:   http.StatusNotFound,
			getStatus:    http.StatusNotFound,
			expectedGets: 1,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "unauthorized does not fall back",
			postStatus:   http.StatusUnauthorized,
			getStatus:    http.StatusOK,
			expectedCode: http.StatusUnauthorized,
			expectUnauth: true,
		},
		{
			name:         "forbidden does not fall back",
			postStatus:   http.StatusForbidden,
			getStatus:    http.StatusOK,
			expectedCode: http.StatusForbidden,
			expectUnauth: true,
		},
		{
			name:         "server error does not fall back",
			postStatus:   http.StatusInternalServerError,
			getStatus:    http.StatusOK,
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeJira{postStatus: tt.postStatus, getStatus: tt.getStatus, body: searchResponse}
			client := newTestClient(t, fake)

			issues, err := client.Search(context.Background(), `project in (ABC) AND assignee = "a@b.c"`, 10)

			assert.Len(t, fake.posts, 1)
			assert.Len(t, fake.gets, tt.expectedGets)
			if tt.expectedGets > 0 {
				assert.Equal(t, map[string]string{
					"jql":        `project in (ABC) AND assignee = "a@b.c"`,
					"maxResults": "10",
					"fields":     "summary,duedate,issuetype,assignee,project,priority,status",
				}, fake.gets[0])
			}

			if tt.expectIssues {
				require.NoError(t, err)
				assert.Len(t, issues, 2)
				return
			}

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.expectedCode, httpErr.StatusCode)
			assert.Contains(t, httpErr.Body, fmt.Sprintf("status %d", tt.expectedCode))
			assert.Equal(t, tt.expectUnauth, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestSearchDecodeError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "not JSON",
			body: "<html>maintenance</html>",
		},
		{
			name: "issue without key",
			body: `{"issues": [{"fields": {"summary": "orphan"}}]}`,
		},
		{
			name: "malformed due date",
			body: `{"issues": [{"key": "ABC-1", "fields": {"duedate": "tomorrow"}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &fakeJira{postStatus: http.StatusOK, body: tt.body})

			_, err := client.Search(context.Background(), "order by key", 5)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestSearchEmptyResult(t *testing.T) {
	client := newTestClient(t, &fakeJira{postStatus: http.StatusOK, body: `{"issues": []}`})

	issues, err := client.Search(context.Background(), "order by key", 5)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestSearchTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient(Options{BaseURL: server.URL, Email: "user@example.com", APIToken: "secret"})
	require.NoError(t, err)
	server.Close()

	_, err = client.Search(context.Background(), "order by key", 5)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestSearchCancelledContext(t *testing.T) {
	client := newTestClient(t, &fakeJira{postStatus: http.StatusOK, body: searchResponse})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, "order by key", 5)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "  ", Email: "user@example.com", APIToken: "secret"})
	assert.Error(t, err)
}

func TestLinks(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://example.atlassian.net//", Email: "u", APIToken: "t"})
	require.NoError(t, err)

	assert.Equal(t, "https://example.atlassian.net", client.JiraURL())
	assert.Equal(t, "https://example.atlassian.net/browse/ABC-1", client.IssueURL("ABC-1"))
	assert.Equal(t,
		"https://example.atlassian.net/issues/?jql=assignee+%3D+%22a%40b.c%22+ORDER+BY+duedate+ASC",
		client.SearchURL(`assignee = "a@b.c" ORDER BY duedate ASC`))
}

func TestHTTPErrorIsUnauthorized(t *testing.T) {
	for code, expected := range map[int]bool{
		http.StatusUnauthorized:        true,
		http.StatusForbidden:           true,
		http.StatusNotFound:            false,
		http.StatusInternalServerError: false,
	} {
		err := fmt.Errorf("wrapped: %w", &HTTPError{Method: http.MethodPost, StatusCode: code})
		assert.Equal(t, expected, errors.Is(err, ErrUnauthorized), "status %d", code)
	}
}
