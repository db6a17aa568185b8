package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/cidmesh-go/internal/infra/confloader"
	"github.com/yndnr/cidmesh-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect node configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "Validate the configuration and print the resolved node id",
				Flags:  []cli.Flag{configFlag()},
				Action: configCheck,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets masked",
				Flags:  []cli.Flag{configFlag(), formatFlag()},
				Action: configShow,
			},
		},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: json, yaml",
		Value:   "yaml",
	}
}

func configCheck(c *cli.Context) error {
	cfg, _, err := loadConfig(c.String("config"), nil)
	if err != nil {
		return err
	}
	nodeID, err := config.ResolveNodeID(cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "configuration ok: node %d, discovery %s\n", nodeID, cfg.Discovery.Mode)
	return err
}

func configShow(c *cli.Context) error {
	cfg, _, err := loadConfig(c.String("config"), nil)
	if err != nil {
		return err
	}
	return printResult(c, config.Sanitize(cfg))
}

// loadConfig loads the defaults, the file, the environment and overrides,
// in ascending priority, and validates the result. The returned loader
// keeps the overrides for reloads.
func loadConfig(path string, overrides map[string]any) (*config.ServerConfig, *confloader.Loader, error) {
	var opts []confloader.Option
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := reloadConfig(loader)
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func reloadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
