package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "nosedive"
	app.Usage = "Peer-rating ledger"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Path to the YAML configuration file",
		},
	}
	app.Commands = []cli.Command{
		registerCommand,
		rateCommand,
		statusCommand,
		timestampsCommand,
		setIntervalCommand,
		policyCommand,
		serveCommand,
		dumpCommand,
		restoreCommand,
	}
	return app
}
