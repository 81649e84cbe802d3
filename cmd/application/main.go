package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"olxmarket_api/config"
	"olxmarket_api/config/values"
	"olxmarket_api/internal/olx/app"
	"olxmarket_api/pkg/dbconnect/postgres"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("config %s not readable (%v), falling back to env", *configPath, err)
		cfg = &config.AppConfig{}
	}
	applyDefaults(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("shutdown signal received")
		cancel()
	}()

	connector := postgres.NewPgConnector(&cfg.Postgres)
	server := app.NewOlxServer(connector, cfg, os.Stdout)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func applyDefaults(cfg *config.AppConfig) {
	if cfg.Postgres.Host == "" {
		cfg.Postgres = *config.GetConfig()
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Olx.BaseURL == "" {
		cfg.Olx.BaseURL = "https://api.olx.ba"
	}
	if cfg.Olx.OlxValues.DefaultCurrency == "" {
		cfg.Olx.OlxValues = values.DefaultOlxValues()
	}
	if cfg.Amqp.ImportQueue == "" {
		cfg.Amqp.ImportQueue = "import_tasks"
	}
	if cfg.Amqp.Workers <= 0 {
		cfg.Amqp.Workers = 4
	}
}
