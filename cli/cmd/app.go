package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/types"
)

// NewApp assembles the jac application.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:                 "jac",
		Usage:                "Talk to a Jaculus device over serial or TCP",
		Version:              fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:                GlobalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			ListPortsCommand(),
			VersionCommand(commit),
			StatusCommand(),
			StartCommand(),
			StopCommand(),
			UnlockCommand(),
			MonitorCommand(),
			ListCommand(),
			ReadCommand(),
			WriteCommand(),
			RemoveCommand(),
			MkdirCommand(),
			RmdirCommand(),
			FormatCommand(),
			UploadCommand(),
			PushCommand(),
			PullCommand(),
			SyncCommand(),
			ResourcesCommand(),
			HashesCommand(),
			ConfigCommand(),
			DebugCommand(),
		},
	}
}
