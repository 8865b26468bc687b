package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aficionados/clubs/cmd/app"
	"github.com/aficionados/clubs/internal/adapters/config"

	_ "time/tzdata"
)

func main() {
	cfg := config.Get()
	a := app.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("Clubs service starting")
	if err := a.Run(ctx); err != nil {
		a.Logger.Panic(err)
	}
}
