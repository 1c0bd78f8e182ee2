package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"drafter/internal/config"
	"drafter/internal/daemonrun"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("drafterd: %v", err)
	}
}
