// cmd/recover.go

package main

import (
	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func recoverFlags() *cli.Command {
	return &cli.Command{
		Name:      "recover",
		Usage:     "replay the journal and optionally rebuild allocator free lists",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "rebuild", Usage: "walk live chains and rebuild allocator free lists"},
		},
		Action: recoverRegion,
	}
}

func recoverRegion(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("PATH is required")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	code, err := mc.Recover(c.Bool("rebuild"))
	if err != nil {
		logger.Fatalf("recover: %s (%s)", err, code)
	}
	logger.Infof("recover: %s", code)
	return nil
}
