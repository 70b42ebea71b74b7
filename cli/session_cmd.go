package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/bernd-wechner/Degoo/backend"
	"github.com/bernd-wechner/Degoo/cli/output"
	"github.com/bernd-wechner/Degoo/internal"
)

type LoginCommandOpts struct {
	Username       string
	Password       string
	CredentialName string
}

func loginCommand() *cobra.Command {
	opts := &LoginCommandOpts{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session token",
		Long:  "Log in with --username/--password, with a stored credential named by --credential, or with the default stored credential. The token is persisted so following commands reuse it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetAppConfig(cmd)

			creds, err := resolveLoginCredentials(cfg.CredentialsFile, opts)
			if err != nil {
				return err
			}

			client := newRemoteClient(cfg)
			token, err := client.Authenticate(cmd.Context(), creds)
			if err != nil {
				return err
			}

			store, err := backend.NewStateStore(cfg.StateFile)
			if err != nil {
				return err
			}
			state, err := store.Load()
			if err != nil {
				return err
			}
			state.Token = token
			// A fresh session starts at the root regardless of where the
			// previous one ended.
			state.WorkingID = backend.RootID
			state.WorkingPath = "/"
			if err := store.Save(state); err != nil {
				return err
			}

			output.NewPrinter().Success("logged in", map[string]any{
				"username": creds.Username,
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "Account email address")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "Account password")
	cmd.Flags().StringVarP(&opts.CredentialName, "credential", "c", "", "Name of a stored credential to log in with")
	return cmd
}

func resolveLoginCredentials(credentialsFile string, opts *LoginCommandOpts) (backend.Credentials, error) {
	if opts.Username != "" || opts.Password != "" {
		if opts.Username == "" || opts.Password == "" {
			return backend.Credentials{}, fmt.Errorf("--username and --password must be given together")
		}
		return backend.Credentials{Username: opts.Username, Password: opts.Password}, nil
	}

	storage, err := backend.NewTomlCredentialStorage(credentialsFile)
	if err != nil {
		return backend.Credentials{}, err
	}

	var cred *backend.LoginCredential
	if opts.CredentialName != "" {
		cred, err = storage.GetCredentialByName(opts.CredentialName)
	} else {
		cred, err = storage.DefaultCredential()
	}
	if err != nil {
		return backend.Credentials{}, err
	}
	internal.Info("using stored credential", internal.Fields{
		internal.FieldName: cred.Name,
	})
	return backend.Credentials{Username: cred.Username, Password: cred.Password}, nil
}

func logoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetAppConfig(cmd)
			store, err := backend.NewStateStore(cfg.StateFile)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			pterm.Success.Println("logged out")
			return nil
		},
	}
	return cmd
}

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user",
		Short:   "Show the logged-in account",
		Aliases: []string{"whoami"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}
			info, err := drive.Client.UserInfo(cmd.Context())
			if err != nil {
				return err
			}
			output.PrintUserInfo(info)
			return nil
		},
	}
	return cmd
}
