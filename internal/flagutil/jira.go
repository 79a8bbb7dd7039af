package flagutil

import (
	"github.com/spf13/pflag"

	"github.com/petr-muller/jira-reminder/internal/config"
)

// JiraOptions holds command line overrides of the JIRA connection settings
type JiraOptions struct {
	ConfigPath string
	Endpoint   string
	Assignee   string
	TokenFile  string
}

// AddPFlags injects Jira options into the given pflag.FlagSet
func (o *JiraOptions) AddPFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "", "Path to the configuration file (default "+config.DefaultPath()+")")
	fs.StringVar(&o.Endpoint, "jira.endpoint", "", "JIRA base URL, overrides "+config.KeyJiraBaseURL)
	fs.StringVar(&o.Assignee, "assignee", "", "Email of the assignee whose issues are tracked, overrides "+config.KeyAssigneeEmail)
	fs.StringVar(&o.TokenFile, "jira.token-file", "", "Path to a file containing the JIRA API token, overrides "+config.KeyAPIToken)
}

// Apply copies the flags that were set onto cfg
func (o *JiraOptions) Apply(cfg *config.Config) {
	if o.Endpoint != "" {
		cfg.JiraBaseURL = o.Endpoint
	}
	if o.Assignee != "" {
		cfg.AssigneeEmail = o.Assignee
	}
	if o.TokenFile != "" {
		cfg.APIToken = ""
		cfg.APITokenFile = o.TokenFile
	}
}

// Load loads the configuration and applies the overrides on top of it
func (o *JiraOptions) Load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	o.Apply(cfg)
	return cfg, nil
}

// LoadValid is Load followed by config validation
func (o *JiraOptions) LoadValid() (*config.Config, error) {
	cfg, err := o.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
