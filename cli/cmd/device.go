package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/cli/render"
	"github.com/cubicap/Jaculus-tools-sub000/runtime"
	"github.com/cubicap/Jaculus-tools-sub000/transport"
	"github.com/cubicap/Jaculus-tools-sub000/types"
)

// PortInfo is one row of the list-ports command.
type PortInfo struct {
	Port string `json:"port" yaml:"port"`
}

// ListPortsCommand returns the list-ports command.
func ListPortsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-ports",
		Usage: "List serial ports on this machine",
		Flags: OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			ports, err := transport.ListSerialPorts()
			if err != nil {
				return cli.Exit(err.Error(), ExitFailure)
			}
			rows := make([]PortInfo, 0, len(ports))
			for _, p := range ports {
				rows = append(rows, PortInfo{Port: p})
			}
			return r.Render(rows)
		},
	}
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the state of the running program",
		Flags: OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			return withDevice(c, func(ctx context.Context, d *runtime.Device) error {
				st, err := d.Controller.Status(ctx)
				if err != nil {
					return err
				}
				if r.Format() != render.FormatTable {
					return r.Render(st)
				}
				return renderStatusLine(c, r, st)
			})
		},
	}
}

func renderStatusLine(c *cli.Context, r *render.Renderer, st types.Status) error {
	state, label := render.StateStopped, "stopped"
	if st.Running {
		state, label = render.StateRunning, "running"
	}
	line := r.Styled(state, label)
	if !st.Running {
		line += fmt.Sprintf(" (exit code %d)", st.ExitCode)
	}
	if st.Text != "" {
		line += ": " + st.Text
	}
	_, err := fmt.Fprintln(c.App.Writer, line)
	return err
}

// StartCommand returns the start command.
func StartCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start a program on the device",
		ArgsUsage: "[entry]",
		Action: func(c *cli.Context) error {
			entry := c.Args().First()
			if entry == "" {
				entry = "index.js"
			}
			return withDevice(c, func(ctx context.Context, d *runtime.Device) error {
				return withLock(ctx, d, func() error {
					return d.Controller.Start(ctx, entry)
				})
			})
		},
	}
}

// StopCommand returns the stop command.
func StopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Stop the running program",
		Action: func(c *cli.Context) error {
			return withDevice(c, func(ctx context.Context, d *runtime.Device) error {
				return withLock(ctx, d, func() error {
					return d.Controller.Stop(ctx)
				})
			})
		},
	}
}

// UnlockCommand returns the unlock command. It clears a lock left
// behind by a client that went away without releasing it.
func UnlockCommand() *cli.Command {
	return &cli.Command{
		Name:  "unlock",
		Usage: "Force-release the device lock",
		Action: func(c *cli.Context) error {
			return withDevice(c, func(ctx context.Context, d *runtime.Device) error {
				return d.Controller.ForceUnlock(ctx)
			})
		},
	}
}

// MonitorCommand returns the monitor command. It streams program output
// and forwards local input until interrupted or the link drops.
func MonitorCommand() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Show program output and forward input to the program",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print link counters to stderr when the session ends",
			},
		},
		Action: func(c *cli.Context) error {
			return withDevice(c, func(ctx context.Context, d *runtime.Device) error {
				err := d.Monitor(ctx, c.App.Reader)
				if c.Bool("stats") {
					r := render.NewRendererWithWriter(render.FormatYAML, true, c.App.ErrWriter)
					if rerr := r.Render(d.Metrics()); rerr != nil && err == nil {
						err = rerr
					}
				}
				return err
			})
		},
	}
}
