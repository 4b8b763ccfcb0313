package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/config"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/events"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/notify"
)

// The notifier tails the ledger event topic and alerts the admin chat, so
// payout requests get human attention quickly.
func main() {
	_ = godotenv.Load()

	cfg := config.Notifier{
		EventsTopic:   "ledger.events",
		ConsumerGroup: "notifier",
		Workers:       4,
		LogLevel:      "info",
	}
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	telegram, err := notify.NewTelegram(cfg.TelegramToken, cfg.AdminChatID)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("telegram init")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.EventsTopic, cfg.Workers)
	if err := consumer.Start(ctx, handleEvent(telegram)); err != nil {
		logger.Logger.Fatal().Err(err).Msg("consumer stopped")
	}
}

func handleEvent(telegram *notify.Telegram) events.Handler {
	return func(ctx context.Context, env events.Envelope) error {
		text, err := formatEvent(env)
		if err != nil {
			logger.Logger.Err(err).Str("event", env.EventType).Msg("event format, skipping")
			return nil
		}
		if text == "" {
			return nil
		}
		return telegram.Send(text)
	}
}

func formatEvent(env events.Envelope) (string, error) {
	switch env.EventType {
	case events.EventPayoutRequested:
		var p events.PayoutRequestedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("Payout request #%d: creator %d asks %d %s via %s",
			p.PayoutID, p.CreatorID, p.Amount, p.Currency, p.PaymentMethod), nil

	case events.EventPayoutApproved:
		var p events.PayoutResolvedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("Payout request #%d approved by admin %s", p.PayoutID, p.AdminID), nil

	case events.EventPayoutRejected:
		var p events.PayoutResolvedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("Payout request #%d rejected by admin %s: %s", p.PayoutID, p.AdminID, p.Reason), nil

	case events.EventPurchaseCompleted:
		var p events.PurchaseCompletedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return "", err
		}
		return fmt.Sprintf("Sale: resource %d for %d %s (creator %d earns %d, platform fee %d)",
			p.ResourceID, p.AmountTotal, p.Currency, p.CreatorID, p.CreatorEarnings, p.PlatformFee), nil
	}
	return "", nil
}
