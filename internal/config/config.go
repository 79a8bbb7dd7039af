// Package config loads the reminder configuration from a YAML file and
// JIRA_REMINDER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/petr-muller/jira-reminder/internal/reminder/jira"
	"github.com/petr-muller/jira-reminder/internal/reminder/jql"
)

const (
	// EnvPrefix prefixes the environment variables overriding file values
	EnvPrefix = "JIRA_REMINDER"

	DefaultStartDateField = "customfield_10015"

	redactedToken = "********"
)

// Configuration keys, as they appear in the YAML file
const (
	KeyJiraBaseURL    = "jira_base_url"
	KeyAssigneeEmail  = "assignee_email"
	KeyAPIToken       = "api_token"
	KeyAPITokenFile   = "api_token_file"
	KeyProjectKeys    = "project_keys"
	KeyIssueTypes     = "issue_types"
	KeyStartDateField = "start_date_field"
	KeyDoneJQL        = "done_jql"
)

// DefaultIssueTypes is used when issue_types is not configured
var DefaultIssueTypes = []string{"Sub-task - HW"}

// Config is the reminder configuration. It is loaded once at startup and
// never changes while the reminder runs.
type Config struct {
	JiraBaseURL   string `yaml:"jira_base_url"`
	AssigneeEmail string `yaml:"assignee_email"`
	APIToken      string `yaml:"api_token,omitempty"`
	// APITokenFile is read when APIToken is empty
	APITokenFile   string   `yaml:"api_token_file,omitempty"`
	ProjectKeys    []string `yaml:"project_keys"`
	IssueTypes     []string `yaml:"issue_types"`
	StartDateField string   `yaml:"start_date_field"`
	DoneJQL        string   `yaml:"done_jql,omitempty"`
}

// Default returns the configuration used for keys that are not set anywhere
func Default() *Config {
	return &Config{
		ProjectKeys:    []string{},
		IssueTypes:     append([]string{}, DefaultIssueTypes...),
		StartDateField: DefaultStartDateField,
	}
}

// Load reads the configuration from path, or from DefaultPath when path is
// empty, with JIRA_REMINDER_* environment variables overriding the file. A
// missing file is not an error: environment variables alone can configure
// the reminder.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadFile reads only the configuration file, ignoring the environment. It
// is used when the file is edited so values from the environment are never
// written into it.
func LoadFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}

	defaults := Default()
	v.SetDefault(KeyJiraBaseURL, "")
	v.SetDefault(KeyAssigneeEmail, "")
	v.SetDefault(KeyAPIToken, "")
	v.SetDefault(KeyAPITokenFile, "")
	v.SetDefault(KeyProjectKeys, defaults.ProjectKeys)
	v.SetDefault(KeyIssueTypes, defaults.IssueTypes)
	v.SetDefault(KeyStartDateField, defaults.StartDateField)
	v.SetDefault(KeyDoneJQL, "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		JiraBaseURL:    strings.TrimSpace(v.GetString(KeyJiraBaseURL)),
		AssigneeEmail:  strings.TrimSpace(v.GetString(KeyAssigneeEmail)),
		APIToken:       strings.TrimSpace(v.GetString(KeyAPIToken)),
		APITokenFile:   strings.TrimSpace(v.GetString(KeyAPITokenFile)),
		ProjectKeys:    List(v.Get(KeyProjectKeys)),
		IssueTypes:     List(v.Get(KeyIssueTypes)),
		StartDateField: strings.TrimSpace(v.GetString(KeyStartDateField)),
		DoneJQL:        strings.TrimSpace(v.GetString(KeyDoneJQL)),
	}
	// an explicitly empty list means the default too
	if len(cfg.IssueTypes) == 0 {
		cfg.IssueTypes = append([]string{}, DefaultIssueTypes...)
	}
	return cfg, nil
}

// List converts a YAML list or a comma-separated string into a list of
// trimmed, non-empty, unique values in their original order.
func List(raw any) []string {
	var items []string
	switch value := raw.(type) {
	case nil:
	case string:
		items = strings.Split(value, ",")
	case []string:
		items = value
	case []any:
		for _, item := range value {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = strings.Split(fmt.Sprint(value), ",")
	}

	seen := sets.New[string]()
	result := []string{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen.Has(item) {
			continue
		}
		seen.Insert(item)
		result = append(result, item)
	}
	return result
}

// Token returns the API token, reading APITokenFile when no inline token is set
func (c *Config) Token() (string, error) {
	if c.APIToken != "" {
		return c.APIToken, nil
	}
	if c.APITokenFile == "" {
		return "", nil
	}

	path, err := homedir.Expand(c.APITokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to expand token file path: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Validate reports every problem that prevents the reminder from running
func (c *Config) Validate() error {
	var errs []error

	if c.JiraBaseURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyJiraBaseURL))
	} else if u, err := url.Parse(c.JiraBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL, got %q", KeyJiraBaseURL, c.JiraBaseURL))
	}

	if c.AssigneeEmail == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyAssigneeEmail))
	}

	if token, err := c.Token(); err != nil {
		errs = append(errs, err)
	} else if token == "" {
		errs = append(errs, fmt.Errorf("either %s or %s is required", KeyAPIToken, KeyAPITokenFile))
	}

	if len(c.IssueTypes) == 0 {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyIssueTypes))
	}

	return errors.Join(errs...)
}

// Save writes the configuration to path as YAML readable only by the owner
func (c *Config) Save(path string) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict config file permissions: %w", err)
	}

	return nil
}

// Redacted returns a copy safe to print, with the inline token masked
func (c *Config) Redacted() *Config {
	redacted := *c
	if redacted.APIToken != "" {
		redacted.APIToken = redactedToken
	}
	return &redacted
}

// JQLOptions returns the options the JQL builder is configured with
func (c *Config) JQLOptions() jql.Options {
	return jql.Options{
		ProjectKeys:    c.ProjectKeys,
		IssueTypes:     c.IssueTypes,
		StartDateField: c.StartDateField,
		DoneJQL:        c.DoneJQL,
	}
}

// ClientOptions returns the options of the JIRA search client
func (c *Config) ClientOptions() (jira.Options, error) {
	token, err := c.Token()
	if err != nil {
		return jira.Options{}, err
	}
	return jira.Options{
		BaseURL:  c.JiraBaseURL,
		Email:    c.AssigneeEmail,
		APIToken: token,
	}, nil
}
