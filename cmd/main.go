// cmd/main.go

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"MemKV/pkg/utils"
)

var logger = utils.GetLogger("memkv")

func setLoggerLevel(c *cli.Context) {
	if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	} else {
		utils.SetLogLevel(logrus.InfoLevel)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "show debug log"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only show warning and error log"},
	}
}

func main() {
	app := &cli.App{
		Name:  "memkv",
		Usage: "inspect and operate a region file",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			createFlags(),
			getFlags(),
			setFlags(),
			delFlags(),
			statFlags(),
			maintainFlags(),
			dumpFlags(),
			loadFlags(),
			recoverFlags(),
			serveFlags(),
			growFlags(),
			clearFlags(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
