package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/cidmesh-go/internal/cli/output"
	"github.com/yndnr/cidmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/cidmesh-go/internal/server/config"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "cidmesh-node",
		Usage:   "DTLS connection id routing node",
		Version: buildinfo.String(),
		Commands: []*cli.Command{
			RunCommand(),
			StatusCommand(),
			NodesCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}
}

// VersionCommand prints the build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Flags: []cli.Flag{outputFlag()},
		Action: func(c *cli.Context) error {
			if c.String("output") == string(output.FormatTable) {
				_, err := fmt.Fprintln(c.App.Writer, buildinfo.String())
				return err
			}
			return printResult(c, buildinfo.Get())
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		EnvVars: []string{"CIDMESH_CONFIG"},
	}
}

func adminFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "admin",
		Aliases: []string{"a"},
		Usage:   "Admin API address of the node",
		EnvVars: []string{"CIDMESH_ADMIN"},
		Value:   config.DefaultAdminAddr,
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: table, json, yaml",
		Value:   string(output.FormatTable),
	}
}

// printResult writes data in the format chosen by --output.
func printResult(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}
