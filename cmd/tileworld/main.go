package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/df-mc/tileworld/server"
	"github.com/df-mc/tileworld/server/console"
)

func main() {
	path := flag.String("config", "config.toml", "path of the TOML configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	uc, err := server.LoadConfig(*path)
	if err != nil {
		log.Error("load config: " + err.Error())
		os.Exit(1)
	}
	conf, err := uc.Config(log)
	if err != nil {
		log.Error("invalid config: " + err.Error())
		os.Exit(1)
	}
	srv, err := conf.New()
	if err != nil {
		log.Error("create server: " + err.Error())
		os.Exit(1)
	}
	srv.Listen()
	log.Info("World started.", "id", srv.World().ID(), "config", *path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go console.New(srv, log, stop).Run(ctx)
	<-ctx.Done()

	log.Info("Shutting down...")
	if err := srv.Close(); err != nil {
		log.Error("close server: " + err.Error())
	}
}
