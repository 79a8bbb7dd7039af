package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/petr-muller/jira-reminder/internal/config"
)

// prompter asks for one value, offering def as the default answer
type prompter func(label, def string, secret bool, validate promptui.ValidateFunc) (string, error)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect the configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create or edit the configuration file interactively",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigInit(cmd.OutOrStdout(), terminalPrompt)
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with the token redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the path of the configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := configPath()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
				return err
			},
		},
	)

	return cmd
}

func configPath() (string, error) {
	if jiraOptions.ConfigPath == "" {
		return config.DefaultPath(), nil
	}
	return homedir.Expand(jiraOptions.ConfigPath)
}

func terminalPrompt(label, def string, secret bool, validate promptui.ValidateFunc) (string, error) {
	templates := &promptui.PromptTemplates{
		Prompt:  "{{ . }}: ",
		Valid:   "{{ . | green }}: ",
		Invalid: "{{ . | red }}: ",
		Success: "{{ . | bold }}: ",
	}

	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: !secret,
		Templates: templates,
		Validate:  validate,
	}
	if secret {
		prompt.Mask = '*'
		if def != "" {
			prompt.Label = label + " (enter to keep)"
			prompt.Default = ""
		}
	}

	result, err := prompt.Run()
	if err != nil {
		return "", err
	}
	if secret && result == "" {
		return def, nil
	}
	return result, nil
}

func required(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("a value is required")
	}
	return nil
}

func absoluteURL(input string) error {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("an absolute http(s) URL is required")
	}
	return nil
}

// askConfig prompts for every setting, offering the current values as defaults
func askConfig(current *config.Config, ask prompter) (*config.Config, error) {
	result := *current

	steps := []struct {
		label    string
		value    *string
		secret   bool
		validate promptui.ValidateFunc
	}{
		{label: "JIRA base URL", value: &result.JiraBaseURL, validate: absoluteURL},
		{label: "Assignee email", value: &result.AssigneeEmail, validate: required},
		{label: "JIRA API token", value: &result.APIToken, secret: true},
	}
	for _, step := range steps {
		answer, err := ask(step.label, *step.value, step.secret, step.validate)
		if err != nil {
			return nil, err
		}
		*step.value = strings.TrimSpace(answer)
	}

	projects, err := ask("Project keys (comma-separated, empty for all)", strings.Join(result.ProjectKeys, ", "), false, nil)
	if err != nil {
		return nil, err
	}
	result.ProjectKeys = config.List(projects)

	issueTypes, err := ask("Issue types (comma-separated)", strings.Join(result.IssueTypes, ", "), false, required)
	if err != nil {
		return nil, err
	}
	result.IssueTypes = config.List(issueTypes)

	startField, err := ask("Start date field (empty to disable)", result.StartDateField, false, nil)
	if err != nil {
		return nil, err
	}
	result.StartDateField = strings.TrimSpace(startField)

	doneJQL, err := ask(`Custom "closed today" JQL (empty for status changed to Done today)`, result.DoneJQL, false, nil)
	if err != nil {
		return nil, err
	}
	result.DoneJQL = strings.TrimSpace(doneJQL)

	return &result, nil
}

func runConfigInit(out io.Writer, ask prompter) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	// environment overrides stay out of the saved file
	current, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		fmt.Fprintf(out, "Editing %s\n", path)
	} else {
		fmt.Fprintf(out, "Creating %s\n", path)
	}

	updated, err := askConfig(current, ask)
	if err != nil {
		return fmt.Errorf("configuration not saved: %w", err)
	}
	if updated.APIToken != "" {
		updated.APITokenFile = ""
	}
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("configuration not saved: %w", err)
	}

	if err := updated.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "Configuration saved to %s\n", path)
	return nil
}

func runConfigShow(out io.Writer) error {
	cfg, err := jiraOptions.Load()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = out.Write(data)
	return err
}
