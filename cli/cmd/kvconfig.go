package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/cli/render"
	"github.com/cubicap/Jaculus-tools-sub000/controller"
	"github.com/cubicap/Jaculus-tools-sub000/runtime"
)

// ConfigValue is the response for config get.
type ConfigValue struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type" yaml:"type"`
	Value     any    `json:"value" yaml:"value"`
}

var typeFlag = &cli.StringFlag{
	Name:    "type",
	Aliases: []string{"t"},
	Usage:   "Value type: int, float, string",
	Value:   "string",
}

// ConfigCommand returns the config command, which manages the device's
// persistent key-value store.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Read and write device configuration values",
		Subcommands: []*cli.Command{
			configGetCommand(),
			configSetCommand(),
			configEraseCommand(),
		},
	}
}

func parseValueType(s string) (controller.ValueType, error) {
	switch s {
	case "int":
		return controller.TypeInt64, nil
	case "float":
		return controller.TypeFloat32, nil
	case "string":
		return controller.TypeString, nil
	default:
		return 0, cli.Exit(fmt.Sprintf("invalid type %q (must be int, float, or string)", s), ExitUsage)
	}
}

func configGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a value",
		ArgsUsage: "<namespace> <name>",
		Flags:     append(OutputFlags(), typeFlag),
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			vt, err := parseValueType(c.String("type"))
			if err != nil {
				return err
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			ns, name := c.Args().Get(0), c.Args().Get(1)
			return lockedAction(func(ctx context.Context, _ *cli.Context, d *runtime.Device) error {
				v, err := getValue(ctx, d.Controller, ns, name, vt)
				if err != nil {
					return err
				}
				return r.Render(ConfigValue{Namespace: ns, Name: name, Type: c.String("type"), Value: v})
			})(c)
		},
	}
}

func getValue(ctx context.Context, ctl *controller.Controller, ns, name string, vt controller.ValueType) (any, error) {
	switch vt {
	case controller.TypeInt64:
		return ctl.ConfigGetInt(ctx, ns, name)
	case controller.TypeFloat32:
		return ctl.ConfigGetFloat(ctx, ns, name)
	default:
		return ctl.ConfigGetString(ctx, ns, name)
	}
}

func configSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Write a value",
		ArgsUsage: "<namespace> <name> <value>",
		Flags:     []cli.Flag{typeFlag},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 3); err != nil {
				return err
			}
			vt, err := parseValueType(c.String("type"))
			if err != nil {
				return err
			}
			ns, name, raw := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
			set, err := setter(vt, ns, name, raw)
			if err != nil {
				return err
			}
			return lockedAction(func(ctx context.Context, _ *cli.Context, d *runtime.Device) error {
				return set(ctx, d.Controller)
			})(c)
		},
	}
}

// setter parses raw before any connection is opened.
func setter(vt controller.ValueType, ns, name, raw string) (func(context.Context, *controller.Controller) error, error) {
	switch vt {
	case controller.TypeInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("invalid int value %q", raw), ExitUsage)
		}
		return func(ctx context.Context, ctl *controller.Controller) error {
			return ctl.ConfigSetInt(ctx, ns, name, v)
		}, nil
	case controller.TypeFloat32:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("invalid float value %q", raw), ExitUsage)
		}
		return func(ctx context.Context, ctl *controller.Controller) error {
			return ctl.ConfigSetFloat(ctx, ns, name, float32(v))
		}, nil
	default:
		return func(ctx context.Context, ctl *controller.Controller) error {
			return ctl.ConfigSetString(ctx, ns, name, raw)
		}, nil
	}
}

func configEraseCommand() *cli.Command {
	return &cli.Command{
		Name:      "erase",
		Usage:     "Delete a value",
		ArgsUsage: "<namespace> <name>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			return lockedAction(func(ctx context.Context, c *cli.Context, d *runtime.Device) error {
				return d.Controller.ConfigErase(ctx, c.Args().Get(0), c.Args().Get(1))
			})(c)
		},
	}
}
