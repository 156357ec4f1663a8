package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Black-And-White-Club/ctf-bot/app"
	"github.com/Black-And-White-Club/ctf-bot/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		application.Observability.Logger.Error("Application stopped with error", "error", err)
		return
	}
	application.Observability.Logger.Info("Application shut down gracefully")
}
