package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/klabast/wb-services/plaza/internal/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.Execute(ctx, os.Args[1:]); err != nil {
		cancel()
		os.Exit(1)
	}
}
