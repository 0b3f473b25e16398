package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/99designs/keyring"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/redtime/internal/credential"
	"github.com/nhle/redtime/internal/model"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store the Redmine URL and API key",
		Long: `Prompt for the Redmine server URL and your API key. The key is kept in
the system keyring; the URL and read-only flag go to the config file.

The API key is listed under "My account" on the Redmine server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts)
		},
	}
}

func runLogin(cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := model.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	baseURL := cfg.Redmine.BaseURL
	readOnly := cfg.Redmine.ReadOnly
	var apiKey string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("Redmine server URL (e.g., https://redmine.example.com)").
				Placeholder("https://redmine.example.com").
				Value(&baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API Key").
				Description("Your Redmine API access key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey).
				Validate(validateRequired("API key")),
			huh.NewConfirm().
				Title("Read-only").
				Description("Log changes instead of sending them").
				Value(&readOnly),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return fmt.Errorf("login form: %w", err)
	}

	if err := credential.Set(credential.APIKeyName, strings.TrimSpace(apiKey)); err != nil {
		return err
	}

	cfg.Redmine.BaseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	cfg.Redmine.ReadOnly = readOnly
	cfg.Redmine.APIKey = ""
	if err := model.SaveConfig(opts.configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), successLine("Saved "+opts.configPath))
	return nil
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the API key from the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := credential.Get(credential.APIKeyName); errors.Is(err, keyring.ErrKeyNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), helpLine("No API key stored"))
				return nil
			}
			if err := credential.Delete(credential.APIKeyName); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successLine("API key removed"))
			return nil
		},
	}
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://redmine.example.com)")
	}
	return nil
}
