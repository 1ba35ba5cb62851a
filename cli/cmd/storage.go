package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/cli/render"
	"github.com/cubicap/Jaculus-tools-sub000/runtime"
)

// lockedAction opens a session and runs fn under the device lock. The
// device serves storage and config requests only to the lock holder.
func lockedAction(fn func(ctx context.Context, c *cli.Context, d *runtime.Device) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, d *runtime.Device) error {
			return withLock(ctx, d, func() error {
				return fn(ctx, c, d)
			})
		})
	}
}

// requireArgs fails with a usage error when fewer than n arguments
// were given.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		return cli.Exit(fmt.Sprintf("%s: expected %s", c.Command.Name, c.Command.ArgsUsage), ExitUsage)
	}
	return nil
}

// ListCommand returns the ls command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List a device directory",
		ArgsUsage: "[path]",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			path := c.Args().First()
			if path == "" {
				path = "/"
			}
			return lockedAction(func(ctx context.Context, _ *cli.Context, d *runtime.Device) error {
				entries, err := d.Uploader.ListDirectory(ctx, path)
				if err != nil {
					return err
				}
				return r.Render(entries)
			})(c)
		},
	}
}

// ReadCommand returns the read command. File contents go to stdout
// unless --output is given.
func ReadCommand() *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "Read a file (or, with --resource, a firmware resource)",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write contents to this local file",
			},
			&cli.BoolFlag{
				Name:  "resource",
				Usage: "Read a bundled resource instead of a file",
			},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			return lockedAction(func(ctx context.Context, c *cli.Context, d *runtime.Device) error {
				name := c.Args().First()
				var data []byte
				var err error
				if c.Bool("resource") {
					data, err = d.Uploader.ReadResource(ctx, name)
				} else {
					data, err = d.Uploader.ReadFile(ctx, name)
				}
				if err != nil {
					return err
				}
				if out := c.String("output"); out != "" {
					return os.WriteFile(out, data, 0o644)
				}
				_, err = c.App.Writer.Write(data)
				return err
			})(c)
		},
	}
}

// WriteCommand returns the write command. Contents come from a local
// file, or from stdin when none is given.
func WriteCommand() *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "Write a device file",
		ArgsUsage: "<path> [local-file]",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			data, err := readLocal(c, c.Args().Get(1))
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			return lockedAction(func(ctx context.Context, c *cli.Context, d *runtime.Device) error {
				return d.Uploader.WriteFile(ctx, c.Args().First(), data)
			})(c)
		},
	}
}

func readLocal(c *cli.Context, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(c.App.Reader)
	}
	return os.ReadFile(path)
}

// pathCommand builds a command taking one device path.
func pathCommand(name, usage string, op func(ctx context.Context, d *runtime.Device, path string) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			return lockedAction(func(ctx context.Context, c *cli.Context, d *runtime.Device) error {
				return op(ctx, d, c.Args().First())
			})(c)
		},
	}
}

// RemoveCommand returns the rm command.
func RemoveCommand() *cli.Command {
	return pathCommand("rm", "Delete a device file", func(ctx context.Context, d *runtime.Device, path string) error {
		return d.Uploader.DeleteFile(ctx, path)
	})
}

// MkdirCommand returns the mkdir command.
func MkdirCommand() *cli.Command {
	return pathCommand("mkdir", "Create a device directory", func(ctx context.Context, d *runtime.Device, path string) error {
		return d.Uploader.CreateDirectory(ctx, path)
	})
}

// RmdirCommand returns the rmdir command.
func RmdirCommand() *cli.Command {
	return pathCommand("rmdir", "Delete a device directory", func(ctx context.Context, d *runtime.Device, path string) error {
		return d.Uploader.DeleteDirectory(ctx, path)
	})
}

// FormatCommand returns the format command.
func FormatCommand() *cli.Command {
	return &cli.Command{
		Name:  "format",
		Usage: "Erase and reformat device storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "label",
				Usage: "Volume label",
				Value: "jaculus",
			},
		},
		Action: lockedAction(func(ctx context.Context, c *cli.Context, d *runtime.Device) error {
			return d.Uploader.FormatStorage(ctx, c.String("label"))
		}),
	}
}

// ResourcesCommand returns the resources command.
func ResourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "resources",
		Usage: "List resources bundled in the firmware",
		Flags: OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			return lockedAction(func(ctx context.Context, _ *cli.Context, d *runtime.Device) error {
				res, err := d.Uploader.ListResources(ctx)
				if err != nil {
					return err
				}
				return r.Render(res)
			})(c)
		},
	}
}

// HashesCommand returns the hashes command.
func HashesCommand() *cli.Command {
	return &cli.Command{
		Name:      "hashes",
		Usage:     "Show SHA-1 digests of every file under a device directory",
		ArgsUsage: "[path]",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			path := c.Args().First()
			if path == "" {
				path = "/"
			}
			return lockedAction(func(ctx context.Context, _ *cli.Context, d *runtime.Device) error {
				hashes, err := d.Uploader.GetDirHashes(ctx, path)
				if err != nil {
					return err
				}
				return r.Render(hashes)
			})(c)
		},
	}
}
