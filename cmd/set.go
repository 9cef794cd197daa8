// cmd/set.go

package main

import (
	"github.com/urfave/cli/v2"

	"MemKV/pkg/store"
)

func setFlags() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "insert or overwrite a key",
		ArgsUsage: "PATH KEY VALUE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "only-key", Usage: "store the key with no value"},
			&cli.BoolFlag{Name: "clean", Usage: "insert without marking the entry dirty (skips write-behind)"},
		},
		Action: set,
	}
}

func set(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 2 {
		logger.Fatalf("PATH and KEY are required")
	}
	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	key := []byte(c.Args().Get(1))
	var code store.Code
	var evicted []*store.BlockData
	if c.Bool("only-key") {
		code, evicted, err = mc.SetOnlyKey(key)
	} else {
		if c.Args().Len() < 3 {
			logger.Fatalf("VALUE is required unless --only-key is set")
		}
		code, evicted, err = mc.Set(key, []byte(c.Args().Get(2)), !c.Bool("clean"))
	}
	if err != nil {
		logger.Fatalf("set: %s", err)
	}
	for _, bd := range evicted {
		if bd.Dirty {
			logger.Warnf("set: evicted still-dirty key %q to make room", bd.Key)
		}
	}
	logger.Infof("set: %s", code)
	return nil
}
