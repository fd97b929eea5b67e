package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/feedvault/internal/buildinfo"
	"github.com/dmitrijs2005/feedvault/internal/cli"
	"github.com/dmitrijs2005/feedvault/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
