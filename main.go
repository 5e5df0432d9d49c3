package main

import (
	"os"
	"time"

	"github.com/urfave/cli"

	"confidential-voting/cmd/initialize"
	"confidential-voting/cmd/serve"
	"confidential-voting/log"
)

func main() {
	app := cli.NewApp()
	app.Name = "confidential-voting"
	app.Version = "0.1.0"
	app.Compiled = time.Now()
	app.Usage = "encrypted ballot batches with oracle-verified decryption"
	app.UsageText = "confidential-voting [options] command [command options] [arguments...]"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "config.yaml",
			Usage: "load configuration from `FILE`",
		},
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "set debug mode",
		},
	}

	app.Commands = []cli.Command{
		initialize.Cmd(),
		serve.Cmd(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("err", err)
		os.Exit(1)
	}
}
