// cmd/clear.go

package main

import (
	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func clearFlags() *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "reset a region to empty, freeing every chunk and dropping every entry",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "skip the confirmation prompt"},
		},
		Action: clearRegion,
	}
}

func clearRegion(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("PATH is required")
	}
	if !c.Bool("yes") {
		logger.Fatalf("refusing to clear without --yes")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	before := mc.Describe()
	if err := mc.Clear(); err != nil {
		logger.Fatalf("clear: %s", err)
	}
	logger.Infof("clear: dropped %d elements", before.ElementCount)
	return nil
}
