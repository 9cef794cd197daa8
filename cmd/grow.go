// cmd/grow.go

package main

import (
	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func growFlags() *cli.Command {
	return &cli.Command{
		Name:      "grow",
		Usage:     "extend a region's backing file and add a new generation of allocator capacity",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "extra-bytes", Required: true, Usage: "how many bytes to append to the region"},
		},
		Action: growRegion,
	}
}

func growRegion(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("PATH is required")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	before := mc.Describe()
	if err := mc.Append(c.Uint64("extra-bytes")); err != nil {
		logger.Fatalf("append: %s", err)
	}
	after := mc.Describe()
	logger.Infof("grow: total chunks %d -> %d", before.TotalChunk, after.TotalChunk)
	return nil
}
