// cmd/del.go

package main

import (
	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func delFlags() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "remove a key",
		ArgsUsage: "PATH KEY",
		Action:    del,
	}
}

func del(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 2 {
		logger.Fatalf("PATH and KEY are required")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	code, err := mc.Del([]byte(c.Args().Get(1)))
	if err != nil {
		logger.Fatalf("del: %s", err)
	}
	logger.Infof("del: %s", code)
	return nil
}
