// cmd/get.go

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func getFlags() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "look up a key",
		ArgsUsage: "PATH KEY",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "peek", Usage: "don't touch the GET chain"},
		},
		Action: get,
	}
}

func get(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 2 {
		logger.Fatalf("PATH and KEY are required")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	bd, code, err := mc.Get([]byte(c.Args().Get(1)), c.Bool("peek"))
	if err != nil {
		logger.Fatalf("get: %s", err)
	}
	if code == store.RTNoData {
		fmt.Println("(not found)")
		return nil
	}
	if code == store.RTOnlyKey {
		fmt.Println("(only-key, no value)")
		return nil
	}
	fmt.Printf("%s\n", bd.Value)
	return nil
}
