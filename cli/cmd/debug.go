package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/cli/render"
	"github.com/cubicap/Jaculus-tools-sub000/iox"
	"github.com/cubicap/Jaculus-tools-sub000/trace"
	"github.com/cubicap/Jaculus-tools-sub000/types"
)

// TraceRow is one frame of a decoded trace.
type TraceRow struct {
	Time    string `json:"time" yaml:"time"`
	Dir     string `json:"dir" yaml:"dir"`
	Channel byte   `json:"channel" yaml:"channel"`
	Name    string `json:"name" yaml:"name"`
	Size    int    `json:"size" yaml:"size"`
	Payload string `json:"payload" yaml:"payload"`
}

// DebugCommand returns the debug command with subcommands. Debug
// commands never open a device connection.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools",
		Subcommands: []*cli.Command{
			debugTraceCommand(),
		},
	}
}

func debugTraceCommand() *cli.Command {
	return &cli.Command{
		Name:      "trace",
		Usage:     "Decode a trace file written with --trace",
		ArgsUsage: "<file>",
		Flags: append(OutputFlags(),
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Only show frames on this channel (number or name)",
			},
		),
		Action: debugTraceAction,
	}
}

func debugTraceAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	filter := -1
	if s := c.String("channel"); s != "" {
		ch, ok := parseChannel(s)
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown channel %q", s), ExitUsage)
		}
		filter = int(ch)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open trace: %v", err), ExitUsage)
	}
	defer iox.DiscardClose(f)

	records, err := trace.NewReader(f).ReadAll()
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read trace: %v", err), ExitFailure)
	}

	rows := make([]TraceRow, 0, len(records))
	for _, rec := range records {
		if filter >= 0 && int(rec.Channel) != filter {
			continue
		}
		rows = append(rows, TraceRow{
			Time:    rec.Time.UTC().Format(time.RFC3339Nano),
			Dir:     string(rec.Direction),
			Channel: rec.Channel,
			Name:    types.ChannelName(rec.Channel),
			Size:    len(rec.Payload),
			Payload: strconv.Quote(string(rec.Payload)),
		})
	}
	return r.Render(rows)
}

// parseChannel accepts a channel number or a well-known channel name.
func parseChannel(s string) (byte, bool) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return byte(n), true
	}
	for ch := 0; ch <= 255; ch++ {
		if types.ChannelName(byte(ch)) == s {
			return byte(ch), true
		}
	}
	return 0, false
}
