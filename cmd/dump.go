// cmd/dump.go

package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func dumpFlags() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "write a byte-faithful snapshot of a region to a file",
		ArgsUsage: "PATH OUT",
		Action:    dump,
	}
}

func dump(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 2 {
		logger.Fatalf("PATH and OUT are required")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	out, err := os.Create(c.Args().Get(1))
	if err != nil {
		logger.Fatalf("create %s: %s", c.Args().Get(1), err)
	}
	defer out.Close()

	if err := mc.Dump(out); err != nil {
		logger.Fatalf("dump: %s", err)
	}
	logger.Infof("dumped %s to %s", c.Args().Get(0), c.Args().Get(1))
	return nil
}
