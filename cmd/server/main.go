package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload" // Autoload .env file.
	log "github.com/sirupsen/logrus"

	"github.com/giftar/giftpin/internal/app"
	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/logging"
)

func main() {
	var (
		configPath       string
		migrateOnly      bool
		createOperator   string
		operatorPassword string
	)
	flag.StringVar(&configPath, "config", "", "path to config.yaml (defaults to $GIFTPIN_CONFIG or config.yaml)")
	flag.BoolVar(&migrateOnly, "migrate", false, "run database migrations and exit")
	flag.StringVar(&createOperator, "create-operator", "", "create or reset a super operator with this username and exit")
	flag.StringVar(&operatorPassword, "operator-password", "", "password for -create-operator")
	flag.Parse()

	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		log.WithError(errLoad).Fatal("load config")
	}
	closer, errLog := logging.Setup(cfg.Log)
	if errLog != nil {
		log.WithError(errLog).Fatal("setup logging")
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var errRun error
	switch {
	case migrateOnly:
		errRun = app.Migrate(ctx, cfg)
		if errRun == nil {
			log.Info("migrations applied")
		}
	case createOperator != "":
		errRun = app.CreateOperator(ctx, cfg, createOperator, operatorPassword)
	default:
		errRun = app.RunServer(ctx, cfg)
	}
	if errRun != nil {
		log.WithError(errRun).Error("giftpin exited with error")
		stop()
		_ = closer.Close()
		os.Exit(1)
	}
}
