package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petr-muller/jira-reminder/internal/reminder/jql"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, []string{"Sub-task - HW"}, cfg.IssueTypes)
	assert.Equal(t, "customfield_10015", cfg.StartDateField)
	assert.Empty(t, cfg.ProjectKeys)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
jira_base_url: " https://example.atlassian.net "
assignee_email: user@example.com
api_token: secret
project_keys: [HW, FW, HW]
issue_types: Sub-task - HW, Task
start_date_field: ""
done_jql: "  "
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, &Config{
		JiraBaseURL:    "https://example.atlassian.net",
		AssigneeEmail:  "user@example.com",
		APIToken:       "secret",
		ProjectKeys:    []string{"HW", "FW"},
		IssueTypes:     []string{"Sub-task - HW", "Task"},
		StartDateField: "",
		DoneJQL:        "",
	}, cfg)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "assignee_email: file@example.com\nproject_keys: [HW]\n")
	t.Setenv("JIRA_REMINDER_ASSIGNEE_EMAIL", "env@example.com")
	t.Setenv("JIRA_REMINDER_PROJECT_KEYS", "ABC, XYZ,,ABC")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", cfg.AssigneeEmail)
	assert.Equal(t, []string{"ABC", "XYZ"}, cfg.ProjectKeys)
}

func TestLoadEmptyIssueTypesFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     string
	}{
		{name: "empty yaml list", content: "issue_types: []\n"},
		{name: "blank string", content: "issue_types: \" , \"\n"},
		{name: "blank environment value", content: "issue_types: [Task]\n", env: " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("JIRA_REMINDER_ISSUE_TYPES", tt.env)
			}
			cfg, err := Load(writeFile(t, tt.content))
			require.NoError(t, err)
			assert.Equal(t, DefaultIssueTypes, cfg.IssueTypes)
		})
	}
}

func TestLoadFileIgnoresEnvironment(t *testing.T) {
	path := writeFile(t, "assignee_email: file@example.com\n")
	t.Setenv("JIRA_REMINDER_API_TOKEN", "from-env")
	t.Setenv("JIRA_REMINDER_ASSIGNEE_EMAIL", "env@example.com")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.APIToken)
	assert.Equal(t, "file@example.com", cfg.AssigneeEmail)

	merged, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", merged.APIToken)
	assert.Equal(t, "env@example.com", merged.AssigneeEmail)
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeFile(t, "jira_base_url: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected []string
	}{
		{name: "nil", raw: nil, expected: []string{}},
		{name: "comma separated", raw: " A, B ,,A", expected: []string{"A", "B"}},
		{name: "string slice", raw: []string{"A", " ", "B"}, expected: []string{"A", "B"}},
		{name: "yaml list", raw: []any{"A", 1, "A"}, expected: []string{"A", "1"}},
		{name: "spaces inside values are kept", raw: "Sub-task - HW", expected: []string{"Sub-task - HW"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, List(tt.raw))
		})
	}
}

func TestToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("from-file\n"), 0o600))

	tests := []struct {
		name        string
		config      Config
		expected    string
		expectedErr bool
	}{
		{name: "inline token wins", config: Config{APIToken: "inline", APITokenFile: tokenFile}, expected: "inline"},
		{name: "token file is trimmed", config: Config{APITokenFile: tokenFile}, expected: "from-file"},
		{name: "nothing configured", config: Config{}, expected: ""},
		{name: "missing token file", config: Config{APITokenFile: tokenFile + ".missing"}, expectedErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := tt.config.Token()
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, token)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			JiraBaseURL:   "https://example.atlassian.net",
			AssigneeEmail: "user@example.com",
			APIToken:      "secret",
			IssueTypes:    []string{"Task"},
		}
	}

	tests := []struct {
		name          string
		mutate        func(*Config)
		expectedError string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing base URL", mutate: func(c *Config) { c.JiraBaseURL = "" }, expectedError: "jira_base_url is required"},
		{name: "relative base URL", mutate: func(c *Config) { c.JiraBaseURL = "example.atlassian.net" }, expectedError: "absolute http(s) URL"},
		{name: "missing assignee", mutate: func(c *Config) { c.AssigneeEmail = "" }, expectedError: "assignee_email is required"},
		{name: "missing token", mutate: func(c *Config) { c.APIToken = "" }, expectedError: "either api_token or api_token_file"},
		{name: "no issue types", mutate: func(c *Config) { c.IssueTypes = nil }, expectedError: "issue_types must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		JiraBaseURL:    "https://example.atlassian.net",
		AssigneeEmail:  "user@example.com",
		APIToken:       "secret",
		ProjectKeys:    []string{"HW"},
		IssueTypes:     []string{"Sub-task - HW"},
		StartDateField: "customfield_10015",
		DoneJQL:        "assignee = currentUser() AND status CHANGED TO Done DURING (startOfDay(), now())",
	}
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestRedacted(t *testing.T) {
	cfg := &Config{APIToken: "secret", APITokenFile: "~/token"}
	redacted := cfg.Redacted()

	assert.Equal(t, "********", redacted.APIToken)
	assert.Equal(t, "~/token", redacted.APITokenFile)
	assert.Equal(t, "secret", cfg.APIToken, "the original is not modified")

	assert.Empty(t, (&Config{}).Redacted().APIToken)
}

func TestOptions(t *testing.T) {
	cfg := &Config{
		JiraBaseURL:    "https://example.atlassian.net",
		AssigneeEmail:  "user@example.com",
		APIToken:       "secret",
		ProjectKeys:    []string{"HW"},
		IssueTypes:     []string{"Task"},
		StartDateField: "customfield_10015",
	}

	assert.Equal(t, jql.Options{
		ProjectKeys:    []string{"HW"},
		IssueTypes:     []string{"Task"},
		StartDateField: "customfield_10015",
	}, cfg.JQLOptions())

	opts, err := cfg.ClientOptions()
	require.NoError(t, err)
	assert.Equal(t, "https://example.atlassian.net", opts.BaseURL)
	assert.Equal(t, "user@example.com", opts.Email)
	assert.Equal(t, "secret", opts.APIToken)
}

func TestDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	dir, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg-data/jira-reminder", dir)
}
