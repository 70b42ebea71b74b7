package cli

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/bernd-wechner/Degoo/backend"
	"github.com/bernd-wechner/Degoo/cli/output"
)

type AddCredentialOpts struct {
	CredentialName string
	Username       string
	Password       string
	Default        bool
}

type DeleteCredentialOpts struct {
	CredentialName string
}

func CredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credential",
		Short:   "Manage stored account credentials",
		Aliases: []string{"creds", "c"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(AddCredentialCommand())
	cmd.AddCommand(ListCredentialCommand())
	cmd.AddCommand(DeleteCredentialCommand())
	return cmd
}

func AddCredentialCommand() *cobra.Command {
	opts := &AddCredentialOpts{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store an account credential for login",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.CredentialName == "" {
				return errors.New("must specify a credential name")
			}
			if opts.Username == "" || opts.Password == "" {
				return errors.New("must specify both username and password")
			}

			credential := &backend.LoginCredential{
				Name:     opts.CredentialName,
				Username: opts.Username,
				Password: opts.Password,
				Default:  opts.Default,
			}
			if err := credential.Validate(); err != nil {
				return err
			}

			cfg := GetAppConfig(cmd)
			storage, err := backend.NewTomlCredentialStorage(cfg.CredentialsFile)
			if err != nil {
				return err
			}
			if err := storage.AddCredential(credential); err != nil {
				return err
			}
			output.NewPrinter().Success("stored credential", map[string]any{
				"name":     credential.Name,
				"username": credential.Username,
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.CredentialName, "name", "n", "", "Credential name")
	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "Account email address")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "Account password")
	cmd.Flags().BoolVar(&opts.Default, "default", false, "Use this credential when login names none")
	return cmd
}

func ListCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List stored credentials",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetAppConfig(cmd)
			storage, err := backend.NewTomlCredentialStorage(cfg.CredentialsFile)
			if err != nil {
				return err
			}
			creds, err := storage.ListCredentials()
			if err != nil {
				return err
			}
			for _, cred := range creds {
				pterm.Printfln("[%s]", cred.Name)
				pterm.Printfln("username = %s", cred.Username)
				pterm.Printfln("uuid = %s", cred.UUID)
				pterm.Printfln("default = %t", cred.Default)
				pterm.Println("")
			}
			return nil
		},
	}
	return cmd
}

func DeleteCredentialCommand() *cobra.Command {
	opts := &DeleteCredentialOpts{}
	cmd := &cobra.Command{
		Use:     "delete",
		Short:   "Delete a stored credential",
		Aliases: []string{"rm"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.CredentialName == "" {
				return errors.New("must specify a credential name")
			}
			cfg := GetAppConfig(cmd)
			storage, err := backend.NewTomlCredentialStorage(cfg.CredentialsFile)
			if err != nil {
				return err
			}
			if err := storage.DeleteCredentialByName(opts.CredentialName); err != nil {
				return err
			}
			output.NewPrinter().Success("deleted credential", map[string]any{
				"name": opts.CredentialName,
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.CredentialName, "name", "n", "", "Credential name")
	return cmd
}
