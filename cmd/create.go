// cmd/create.go

package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func createFlags() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "format a new region file",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "size", Value: 64 << 20, Usage: "region size in bytes"},
			&cli.Uint64Flag{Name: "min-chunk", Value: 64, Usage: "smallest chunk size class"},
			&cli.Uint64Flag{Name: "max-chunk", Value: 1 << 16, Usage: "largest chunk size class"},
			&cli.Float64Flag{Name: "factor", Value: 1.5, Usage: "geometric growth factor between chunk size classes"},
			&cli.Uint64Flag{Name: "bucket-ratio", Value: 2, Usage: "target chunks per bucket"},
			&cli.Uint64Flag{Name: "erase-policy", Value: 0, Usage: "0=GET order, 1=SET order"},
			&cli.BoolFlag{Name: "auto-evict", Value: true, Usage: "evict LRU victims instead of failing allocation"},
		},
		Action: create,
	}
}

func create(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("PATH is required")
	}
	cfg := store.Config{
		Path:         c.Args().Get(0),
		RegionSize:   c.Uint64("size"),
		MinChunkSize: c.Uint64("min-chunk"),
		MaxChunkSize: c.Uint64("max-chunk"),
		Factor:       c.Float64("factor"),
		BucketRatio:  c.Uint64("bucket-ratio"),
		ErasePolicy:  c.Uint64("erase-policy"),
		AutoEvict:    c.Bool("auto-evict"),
		EraseBatch:   16,
		WritebackAge: 30 * time.Second,
	}
	mc, err := store.Create(cfg)
	if err != nil {
		logger.Fatalf("create: %s", err)
	}
	defer mc.Close()
	logger.Infof("region created at %s (%d bytes)", cfg.Path, cfg.RegionSize)
	return nil
}
