// cmd/load.go

package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
	"MemKV/pkg/utils"
)

func loadFlags() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "restore a region from a dump file",
		ArgsUsage: "DUMP PATH",
		Action:    load,
	}
}

func load(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 2 {
		logger.Fatalf("DUMP and PATH are required")
	}
	if utils.Exists(c.Args().Get(1)) {
		logger.Fatalf("%s already exists, refusing to overwrite", c.Args().Get(1))
	}

	in, err := os.Open(c.Args().Get(0))
	if err != nil {
		logger.Fatalf("open %s: %s", c.Args().Get(0), err)
	}
	defer in.Close()

	mc, err := store.LoadInto(c.Args().Get(1), in, nil)
	if err != nil {
		logger.Fatalf("load: %s", err)
	}
	defer mc.Close()
	logger.Infof("loaded %s into %s", c.Args().Get(0), c.Args().Get(1))
	return nil
}
