// cmd/serve.go

package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/juicedata/godaemon"
	"github.com/urfave/cli/v2"

	"MemKV/pkg/backend"
	"MemKV/pkg/store"
)

func serveFlags() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "run the write-behind loop against a region until interrupted",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Value: 30 * time.Second, Usage: "writeback interval"},
			&cli.StringFlag{Name: "redis", Usage: "redis addr to flush dirty entries to (host:port)"},
			&cli.StringFlag{Name: "redis-prefix", Value: "memkv", Usage: "key prefix for the redis flush target"},
			&cli.BoolFlag{Name: "d", Aliases: []string{"background"}, Usage: "run in background"},
			&cli.StringFlag{Name: "log", Value: "/var/log/memkv.log", Usage: "path of log file when running in background"},
			&cli.BoolFlag{Name: "gops", Usage: "expose a gops diagnostics agent for this process"},
		},
		Action: serve,
	}
}

func daemonize(c *cli.Context) error {
	var attrs godaemon.DaemonAttr
	if godaemon.Stage() == 0 {
		logfile := c.String("log")
		if err := os.MkdirAll(filepath.Dir(logfile), 0755); err != nil {
			logger.Warnf("mkdir %s: %s", filepath.Dir(logfile), err)
		}
		var err error
		attrs.Stdout, err = os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("open log file %s: %s", logfile, err)
		}
	}
	_, _, err := godaemon.MakeDaemon(&attrs)
	return err
}

func serve(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		logger.Fatalf("PATH is required")
	}

	if c.Bool("d") {
		if err := daemonize(c); err != nil {
			logger.Fatalf("daemonize: %s", err)
		}
	}
	if c.Bool("gops") {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Warnf("gops agent: %s", err)
		}
	}

	mc, err := store.Connect(c.Args().Get(0), nil)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer mc.Close()

	flush := func(key, value []byte) error { return nil }
	if addr := c.String("redis"); addr != "" {
		rf := backend.NewRedisFlusher(addr, c.String("redis-prefix"))
		defer rf.Close()
		flush = rf.Flush
	}

	wb := store.NewWriteback(mc, flush)
	done := make(chan struct{})
	go func() {
		wb.Run(c.Duration("interval"))
		close(done)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Infof("shutting down, flushing remaining dirty entries")
	wb.Stop()
	<-done
	return nil
}
