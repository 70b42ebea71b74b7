package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/bernd-wechner/Degoo/backend"
	"github.com/bernd-wechner/Degoo/cli/output"
	"github.com/bernd-wechner/Degoo/internal"
)

type PutCommandOpts struct {
	Remote    string
	IfChanged bool
}

type GetCommandOpts struct {
	IfMissing bool
}

func getCommand() *cobra.Command {
	opts := &GetCommandOpts{}
	cmd := &cobra.Command{
		Use:     "get <remote-path> [local-dir]",
		Short:   "Download a remote file or folder",
		Long:    "Download a remote file, or a folder and everything under it, into a local directory (the current one when omitted).",
		Aliases: []string{"download"},
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}

			localDir := "."
			if len(args) == 2 {
				localDir = args[1]
			}

			progress := output.NewFileProgressManager()
			if err := progress.Start(); err != nil {
				internal.Warn("progress display unavailable", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}
			defer progress.Stop()
			drive.SetProgress(progress)
			drive.SetTransferOptions(backend.TransferOptions{IfMissing: opts.IfMissing})

			item, err := drive.Download(cmd.Context(), args[0], localDir)
			if err != nil {
				var failed *backend.TransferFailed
				if errors.As(err, &failed) {
					internal.Error("download gave up", internal.Fields{
						internal.FieldPath:    failed.Path,
						internal.FieldAttempt: failed.Attempts,
						internal.FieldError:   failed.Err.Error(),
					})
				}
				return err
			}

			progress.Stop()
			output.NewPrinter().Success("downloaded", map[string]any{
				"name": item.Name,
				"to":   localDir,
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.IfMissing, "if-missing", false, "Skip files that already exist locally")
	return cmd
}

func putCommand() *cobra.Command {
	opts := &PutCommandOpts{}
	cmd := &cobra.Command{
		Use:     "put <local-path> [remote-path]",
		Short:   "Upload a local file or directory",
		Long:    "Upload a local file, or a directory and everything under it, into a remote folder (the working directory when omitted).",
		Aliases: []string{"upload"},
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			drive, _, err := openDrive(cmd)
			if err != nil {
				return err
			}

			remote := opts.Remote
			if len(args) == 2 {
				remote = args[1]
			}

			progress := output.NewFileProgressManager()
			if err := progress.Start(); err != nil {
				internal.Warn("progress display unavailable", internal.Fields{
					internal.FieldError: err.Error(),
				})
			}
			defer progress.Stop()
			drive.SetProgress(progress)
			drive.SetTransferOptions(backend.TransferOptions{IfChanged: opts.IfChanged})

			item, err := drive.Upload(cmd.Context(), args[0], remote)
			if err != nil {
				var failed *backend.TransferFailed
				if errors.As(err, &failed) {
					internal.Error("upload gave up", internal.Fields{
						internal.FieldPath:    failed.Path,
						internal.FieldAttempt: failed.Attempts,
						internal.FieldError:   failed.Err.Error(),
					})
				}
				return err
			}

			progress.Stop()
			output.NewPrinter().Success("uploaded", map[string]any{
				"name": item.Name,
				"id":   item.ID,
				"size": output.HumanizeSize(item.Size),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Remote, "to", "", "Remote folder to upload into")
	cmd.Flags().BoolVar(&opts.IfChanged, "if-changed", false, "Skip files whose remote copy already matches")
	return cmd
}
