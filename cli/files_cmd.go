package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bernd-wechner/Degoo/cli/output"
)

type LsCommandOpts struct {
	Long  bool
	Human bool
}

func lsCommand() *cobra.Command {
	opts := &LsCommandOpts{}
	cmd := &cobra.Command{
		Use:     "ls [path]",
		Short:   "List the contents of a remote folder",
		Aliases: []string{"list", "dir"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			items, err := drive.List(cmd.Context(), path)
			if err != nil {
				return err
			}

			if opts.Long {
				return output.PrintItemTable(items, opts.Human)
			}
			output.PrintItemNames(items, GetAppConfig(cmd).PathSeparator)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Long, "long", "l", false, "Long listing with kind, size, time and ID")
	cmd.Flags().BoolVarP(&opts.Human, "human", "H", false, "Humanize sizes in the long listing")
	return cmd
}

func treeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Render the folder hierarchy under a remote path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			item, err := drive.Item(cmd.Context(), path)
			if err != nil {
				return err
			}
			if !item.IsContainer() {
				return fmt.Errorf("%s is not a folder", path)
			}
			root := drive.Resolver.Canonicalize(drive.CWD, path)
			return output.PrintTree(cmd.Context(), drive, root, item)
		},
	}
	return cmd
}

func cdCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cd [path]",
		Short: "Change the remote working directory",
		Long:  "Change the remote working directory. The new directory persists across invocations; with no argument, return to the root.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, store, err := openDrive(cmd)
			if err != nil {
				return err
			}

			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := drive.ChangeDir(cmd.Context(), path); err != nil {
				return err
			}
			if err := persistCWD(store, drive); err != nil {
				return err
			}
			output.NewPrinter().Plain(drive.CWD.String())
			return nil
		},
	}
	return cmd
}

func pwdCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pwd",
		Short: "Print the remote working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}
			output.NewPrinter().Plain(drive.CWD.String())
			return nil
		},
	}
	return cmd
}

func mkdirCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote folder, with missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}
			item, err := drive.MkdirAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			output.NewPrinter().Success("created folder", map[string]any{
				"path": drive.Resolver.Canonicalize(drive.CWD, args[0]).String(),
				"id":   item.ID,
			})
			return nil
		},
	}
	return cmd
}

func rmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <path>",
		Short:   "Move a remote file or folder to the recycle bin",
		Aliases: []string{"delete", "del"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}
			item, err := drive.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			output.NewPrinter().Success("removed", map[string]any{
				"name": item.Name,
				"id":   item.ID,
			})
			return nil
		},
	}
	return cmd
}

func mvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mv <source> <destination>",
		Short:   "Move or rename a remote file or folder",
		Long:    "Move or rename a remote file or folder. A destination that names an existing folder moves the source into it; any other destination is the new name.",
		Aliases: []string{"move"},
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}
			item, err := drive.Move(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			output.NewPrinter().Success("moved", map[string]any{
				"name": item.Name,
				"id":   item.ID,
			})
			return nil
		},
	}
	return cmd
}
