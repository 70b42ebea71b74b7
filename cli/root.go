package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bernd-wechner/Degoo/backend"
	"github.com/bernd-wechner/Degoo/backend/degoo"
	"github.com/bernd-wechner/Degoo/internal"
)

type ctxKey string

const appCtxKey ctxKey = "appData"
const appConfigPathKey ctxKey = "appConfigPath"

func NewRootCommand() *cobra.Command {
	var appConfigPath string
	var apiURLFlag string

	rootCmd := &cobra.Command{
		Use:   "degoo",
		Short: "degoo is a CLI client for the Degoo cloud storage service",
		Long:  `degoo talks to the Degoo cloud storage backend, presenting the remote tree as a filesystem: list it, walk it, make and remove folders, and move files in either direction.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadAppConfig(appConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load app config: %w", err)
			}

			if apiURLFlag != "" {
				cfg.APIURL = apiURLFlag
			}
			if err := internal.ConfigureLogger(cfg.LogLevel); err != nil {
				internal.Warn("invalid log level in app config, defaulting to info", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}

			for _, file := range []string{cfg.CredentialsFile, cfg.StateFile} {
				if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
					return fmt.Errorf("failed to create directory for %s: %w", file, err)
				}
			}

			cfgPath := appConfigPath
			if strings.TrimSpace(cfgPath) == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				cfgPath = filepath.Join(home, ".degoo", "cli_config.toml")
			}

			ctx := context.WithValue(cmd.Context(), appCtxKey, cfg)
			ctx = context.WithValue(ctx, appConfigPathKey, cfgPath)
			cmd.SetContext(ctx)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&appConfigPath, "app-config", "", "Path to app config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Override the API endpoint URL")

	rootCmd.AddCommand(lsCommand())
	rootCmd.AddCommand(treeCommand())
	rootCmd.AddCommand(cdCommand())
	rootCmd.AddCommand(pwdCommand())
	rootCmd.AddCommand(mkdirCommand())
	rootCmd.AddCommand(rmCommand())
	rootCmd.AddCommand(mvCommand())
	rootCmd.AddCommand(getCommand())
	rootCmd.AddCommand(putCommand())
	rootCmd.AddCommand(loginCommand())
	rootCmd.AddCommand(logoutCommand())
	rootCmd.AddCommand(userCommand())
	rootCmd.AddCommand(CredentialCommand())
	rootCmd.AddCommand(ConfigCommand())

	return rootCmd
}

// Helper function for subcommands to get appData
func GetAppConfig(cmd *cobra.Command) *internal.AppConfig {
	if v := cmd.Context().Value(appCtxKey); v != nil {
		if data, ok := v.(*internal.AppConfig); ok {
			return data
		}
	}
	return nil
}

func getAppConfigPath(cmd *cobra.Command) string {
	if v := cmd.Context().Value(appConfigPathKey); v != nil {
		if path, ok := v.(string); ok {
			return path
		}
	}
	return ""
}

func newRemoteClient(cfg *internal.AppConfig) *degoo.Client {
	return degoo.NewClient(degoo.Config{
		APIURL:     cfg.APIURL,
		LoginURL:   cfg.LoginURL,
		APIKey:     cfg.APIKey,
		UserAgent:  cfg.UserAgent,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	})
}

func sessionConfig(cfg *internal.AppConfig) backend.SessionConfig {
	policy := backend.DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryBackoffMs > 0 {
		policy.BaseBackoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	}
	return backend.SessionConfig{
		Policy:         policy,
		ChunkSize:      cfg.ChunkSize,
		ChunkThreshold: cfg.ChunkThreshold,
		UserAgent:      cfg.UserAgent,
	}
}

// openDrive builds a Drive around a logged-in remote client and restores
// the persisted working directory. Commands that only need the session
// token (login, logout) do not go through here.
func openDrive(cmd *cobra.Command) (*backend.Drive, *backend.StateStore, error) {
	cfg := GetAppConfig(cmd)
	if cfg == nil {
		return nil, nil, fmt.Errorf("no app config in command context")
	}

	store, err := backend.NewStateStore(cfg.StateFile)
	if err != nil {
		return nil, nil, err
	}
	state, err := store.Load()
	if err != nil {
		return nil, nil, err
	}
	if state.Token == "" {
		return nil, nil, &backend.AuthError{Reason: "no session, run 'degoo login' first"}
	}

	client := newRemoteClient(cfg)
	client.SetToken(backend.SessionToken(state.Token))

	drive := backend.NewDrive(client, cfg.PathSeparator, sessionConfig(cfg))
	if state.WorkingPath != "" && state.WorkingPath != "/" {
		if err := drive.RestoreCWD(cmd.Context(), state.WorkingPath); err != nil {
			internal.Warn("persisted working directory no longer resolves, starting at root", internal.Fields{
				internal.FieldPath:  state.WorkingPath,
				internal.FieldError: err.Error(),
			})
		}
	}
	return drive, store, nil
}

// persistCWD records the drive's working directory so the next invocation
// starts where this one left off.
func persistCWD(store *backend.StateStore, drive *backend.Drive) error {
	state, err := store.Load()
	if err != nil {
		return err
	}
	state.WorkingID = drive.CWDID
	state.WorkingPath = drive.CWD.String()
	return store.Save(state)
}
