package initialize

import (
	"fmt"

	"github.com/urfave/cli"

	"confidential-voting/config"
)

func Cmd() cli.Command {
	return cli.Command{
		Name:      "init",
		Usage:     "Write the default configuration file",
		UsageText: "confidential-voting [--config FILE] init [--force]",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  "force, f",
				Usage: "overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			return initConfig(c.GlobalString("config"), c.Bool("force"))
		},
	}
}

func initConfig(path string, force bool) error {
	if err := config.Init(path, force); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	fmt.Printf("configuration written to %s\n", path)
	return nil
}
