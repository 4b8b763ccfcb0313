package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/config"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/server"
)

func main() {
	_ = godotenv.Load()

	randBytes := make([]byte, 16)
	if _, err := rand.Read(randBytes); err != nil {
		log.Fatal(err)
	}

	cfg := config.Config{
		RunAddress:      "localhost:8081",
		DatabaseURI:     "postgres://localhost:5432/directory",
		SecretKey:       hex.EncodeToString(randBytes),
		ListingCacheTTL: 60,
		EventsTopic:     "ledger.events",
		GatewayTimeout:  5,
		FeaturedPrice:   2900,
		FeaturedDays:    30,
		LogLevel:        "info",
	}

	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	flag.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "run address")
	flag.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "database URI")
	flag.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	flag.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	flag.Parse()

	logger.Init(cfg.LogLevel, cfg.LogPretty)

	if err := server.Serve(&cfg); err != nil {
		logger.Logger.Fatal().Err(err).Msg("server stopped")
	}
}
