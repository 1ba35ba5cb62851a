// Package cmd provides CLI commands for the jac binary.
package cmd

import "github.com/urfave/cli/v2"

// Connection flags, shared by every command that talks to a device.
var (
	// PortFlag selects a serial port.
	PortFlag = &cli.StringFlag{
		Name:    "port",
		Aliases: []string{"p"},
		Usage:   "Serial port of the device",
		EnvVars: []string{"JAC_PORT"},
	}

	// BaudRateFlag sets the serial line speed.
	BaudRateFlag = &cli.IntFlag{
		Name:    "baudrate",
		Aliases: []string{"b"},
		Usage:   "Serial baud rate (default 921600)",
	}

	// SocketFlag selects a TCP endpoint instead of a serial port.
	SocketFlag = &cli.StringFlag{
		Name:    "socket",
		Aliases: []string{"s"},
		Usage:   "TCP address of the device (host[:port])",
		EnvVars: []string{"JAC_SOCKET"},
	}

	// ConfigFlag points at a jac.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to config file (default ./jac.yaml if present)",
	}

	// TraceFlag records every frame of the session to a file.
	TraceFlag = &cli.StringFlag{
		Name:  "trace",
		Usage: "Record link frames to a trace file",
	}

	// LogLevelFlag sets the session log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// Output flags, shared by commands that print a result.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// GlobalFlags returns the application-level flags.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		PortFlag,
		BaudRateFlag,
		SocketFlag,
		ConfigFlag,
		TraceFlag,
		LogLevelFlag,
		NoColorFlag,
	}
}

// OutputFlags returns the flags for commands that render a result.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag}
}
