package cli

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bernd-wechner/Degoo/internal"
)

func ConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or update degoo configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(configShowCommand())
	cmd.AddCommand(configSetCommand())
	return cmd
}

func configShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetAppConfig(cmd)
			if cfg == nil {
				return fmt.Errorf("config unavailable")
			}
			pterm.Printfln("api_url = %s", cfg.APIURL)
			pterm.Printfln("login_url = %s", cfg.LoginURL)
			pterm.Printfln("user_agent = %s", cfg.UserAgent)
			pterm.Printfln("state_file = %s", cfg.StateFile)
			pterm.Printfln("credentials_file = %s", cfg.CredentialsFile)
			pterm.Printfln("chunk_size = %d", cfg.ChunkSize)
			pterm.Printfln("chunk_threshold = %d", cfg.ChunkThreshold)
			pterm.Printfln("max_retries = %d", cfg.MaxRetries)
			pterm.Printfln("retry_backoff_ms = %d", cfg.RetryBackoffMs)
			pterm.Printfln("path_separator = %s", cfg.PathSeparator)
			pterm.Printfln("log_level = %s", cfg.LogLevel)
			return nil
		},
	}
	return cmd
}

func configSetCommand() *cobra.Command {
	var apiURL string
	var loginURL string
	var chunkSize uint64
	var chunkThreshold uint64
	var maxRetries uint
	var backoffMs uint
	var pathSeparator string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the CLI configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetAppConfig(cmd)
			if cfg == nil {
				return fmt.Errorf("config unavailable")
			}

			changed := applyConfigFlags(cfg, cmd.Flags(), apiURL, loginURL, chunkSize, chunkThreshold, maxRetries, backoffMs, pathSeparator, logLevel)
			if !changed {
				return fmt.Errorf("nothing to update, pass at least one flag")
			}

			path := getAppConfigPath(cmd)
			if _, err := cfg.Save(path); err != nil {
				return fmt.Errorf("saving CLI config: %w", err)
			}
			internal.Info("configuration updated", internal.Fields{
				internal.ConfigPath: path,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "GraphQL API endpoint")
	cmd.Flags().StringVar(&loginURL, "login-url", "", "Login endpoint")
	cmd.Flags().Uint64Var(&chunkSize, "chunk-size", 0, "Upload chunk size in bytes")
	cmd.Flags().Uint64Var(&chunkThreshold, "chunk-threshold", 0, "Size above which uploads are chunked")
	cmd.Flags().UintVar(&maxRetries, "max-retries", 0, "Attempts per transfer operation")
	cmd.Flags().UintVar(&backoffMs, "retry-backoff-ms", 0, "Base retry backoff in milliseconds")
	cmd.Flags().StringVar(&pathSeparator, "path-separator", "", "Separator for remote paths")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (info, debug, ...)")
	return cmd
}

func applyConfigFlags(cfg *internal.AppConfig, flagSet *pflag.FlagSet, apiURL, loginURL string, chunkSize, chunkThreshold uint64, maxRetries, backoffMs uint, pathSeparator, logLevel string) bool {
	changed := false
	if flagSet.Changed("api-url") {
		cfg.APIURL = strings.TrimSpace(apiURL)
		changed = true
	}
	if flagSet.Changed("login-url") {
		cfg.LoginURL = strings.TrimSpace(loginURL)
		changed = true
	}
	if flagSet.Changed("chunk-size") {
		cfg.ChunkSize = chunkSize
		changed = true
	}
	if flagSet.Changed("chunk-threshold") {
		cfg.ChunkThreshold = chunkThreshold
		changed = true
	}
	if flagSet.Changed("max-retries") {
		cfg.MaxRetries = maxRetries
		changed = true
	}
	if flagSet.Changed("retry-backoff-ms") {
		cfg.RetryBackoffMs = backoffMs
		changed = true
	}
	if flagSet.Changed("path-separator") {
		cfg.PathSeparator = pathSeparator
		changed = true
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
		changed = true
	}
	return changed
}
