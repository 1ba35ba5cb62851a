package cmd

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/cli/render"
	"github.com/cubicap/Jaculus-tools-sub000/runtime"
	"github.com/cubicap/Jaculus-tools-sub000/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version            string   `json:"version" yaml:"version"`
	Commit             string   `json:"commit" yaml:"commit"`
	MinFirmwareVersion string   `json:"min_firmware_version" yaml:"min_firmware_version"`
	Firmware           []string `json:"firmware,omitempty" yaml:"firmware,omitempty"`
}

// VersionCommand returns the version command. Without --device it never
// opens a connection.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: append(OutputFlags(),
			&cli.BoolFlag{
				Name:  "device",
				Usage: "Also query the firmware version of the device",
			},
		),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), ExitUsage)
		}

		resp := VersionResponse{
			Version:            types.Version,
			Commit:             commit,
			MinFirmwareVersion: types.MinFirmwareVersion,
		}
		if !c.Bool("device") {
			return r.Render(resp)
		}

		return withDevice(c, func(ctx context.Context, d *runtime.Device) error {
			lines, err := d.Controller.Version(ctx)
			if err != nil {
				return err
			}
			resp.Firmware = lines
			return r.Render(resp)
		})
	}
}
