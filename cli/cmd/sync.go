package cmd

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/cli/render"
	"github.com/cubicap/Jaculus-tools-sub000/runtime"
)

// transferCommand builds a command moving a tree between local and
// device paths.
func transferCommand(name, usage, args string, op func(ctx context.Context, d *runtime.Device, from, to string) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: args,
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			return lockedAction(func(ctx context.Context, c *cli.Context, d *runtime.Device) error {
				return op(ctx, d, c.Args().Get(0), c.Args().Get(1))
			})(c)
		},
	}
}

// UploadCommand returns the upload command.
func UploadCommand() *cli.Command {
	return transferCommand("upload", "Upload a local file or directory", "<local> <remote>",
		func(ctx context.Context, d *runtime.Device, from, to string) error {
			return d.Uploader.Upload(ctx, from, to)
		})
}

// PushCommand returns the push command.
func PushCommand() *cli.Command {
	return transferCommand("push", "Upload the contents of a local directory", "<local-dir> <remote-dir>",
		func(ctx context.Context, d *runtime.Device, from, to string) error {
			return d.Uploader.Push(ctx, from, to)
		})
}

// PullCommand returns the pull command.
func PullCommand() *cli.Command {
	return transferCommand("pull", "Download a device directory into an empty local directory", "<remote-dir> <local-dir>",
		func(ctx context.Context, d *runtime.Device, from, to string) error {
			return d.Uploader.Pull(ctx, from, to)
		})
}

// SyncCommand returns the sync command. It writes only files whose
// digest differs and deletes device files missing locally.
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Make a device directory mirror a local directory",
		ArgsUsage: "<local-dir> <remote-dir>",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			return lockedAction(func(ctx context.Context, c *cli.Context, d *runtime.Device) error {
				result, err := d.Uploader.UploadIfDifferent(ctx, c.Args().Get(0), c.Args().Get(1))
				if err != nil {
					return err
				}
				return r.Render(result)
			})(c)
		},
	}
}
