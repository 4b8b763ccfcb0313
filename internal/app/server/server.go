package server

import (
	"context"
	"net/http"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/cache"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/config"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/events"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/gateway"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/handlers"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/storage"
)

const serviceName = "directory-api"

func Serve(cfg *config.Config) error {
	repo, err := storage.NewRepoDB(cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer repo.Close()

	gateways := map[string]gateway.Gateway{}
	if cfg.RazorpayKeyID != "" {
		gateways[storage.MethodRazorpay] = gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout)
	}
	if cfg.PaypalClientID != "" {
		gateways[storage.MethodPaypal] = gateway.NewPaypal(cfg.PaypalClientID, cfg.PaypalClientSecret, cfg.GatewayTimeout)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic, serviceName, 1024)
		producer.Start(context.Background())
		defer producer.Close()
	}

	listings := cache.NewListingCache(cfg.RedisAddr, cfg.ListingCacheTTL)
	defer listings.Close()

	baseHandler := handlers.NewBaseHandler(handlers.Deps{
		Repo:          repo,
		SecretKey:     cfg.SecretKey,
		Gateways:      gateways,
		Events:        producer,
		Listings:      listings,
		CORSOrigins:   cfg.CORSOrigins,
		FeaturedPrice: cfg.FeaturedPrice,
		FeaturedDays:  cfg.FeaturedDays,
	})

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: baseHandler,
	}

	logger.Logger.Info().Str("addr", cfg.RunAddress).Msg("serving")
	return server.ListenAndServe()
}
