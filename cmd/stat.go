// cmd/stat.go

package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
	"MemKV/pkg/utils"
)

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func statFlags() *cli.Command {
	return &cli.Command{
		Name:      "stat",
		Usage:     "show region occupancy and hash distribution",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "hash", Usage: "also print per-bucket chain lengths"},
			&cli.BoolFlag{Name: "rusage", Usage: "also print this process's resource usage"},
		},
		Action: stat,
	}
}

func stat(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("PATH is required")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	printJson(mc.Describe())
	if c.Bool("hash") {
		printJson(mc.AnalyseHash())
	}
	if c.Bool("rusage") {
		ru := utils.GetRusage()
		fmt.Printf("utime=%.3fs stime=%.3fs\n", ru.GetUtime(), ru.GetStime())
	}
	return nil
}
