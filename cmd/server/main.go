package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/meecokeeper/internal/buildinfo"
	"github.com/dmitrijs2005/meecokeeper/internal/server"
	"github.com/dmitrijs2005/meecokeeper/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := server.NewApp(cfg).Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}
