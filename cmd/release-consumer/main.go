package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/concert-reservations/internal/adapters/crdb"
	"github.com/robertarktes/concert-reservations/internal/adapters/rabbit"
	"github.com/robertarktes/concert-reservations/internal/clock"
	"github.com/robertarktes/concert-reservations/internal/config"
	"github.com/robertarktes/concert-reservations/internal/observability"
	"github.com/robertarktes/concert-reservations/internal/payment"
	"github.com/robertarktes/concert-reservations/internal/queue"
)

const releaseQueue = "token-release.q"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	tokenStore := crdb.NewTokenStore(repo)

	tokens := queue.NewService(tokenStore, clock.NewSystem(), queue.Config{
		MaxActive:   cfg.MaxActiveTokens,
		SessionTTL:  cfg.TokenSessionTTL,
		WaitPerSlot: cfg.WaitPerSlot,
	}, logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, releaseQueue, payment.EventReservationSettled)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	go func() {
		for d := range deliveries {
			handleSettled(ctx, tokens, logger, d)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown release consumer")
}

// handleSettled frees the settled reservation owner's admission token.
// Release is idempotent, so redeliveries of the same event are harmless.
func handleSettled(ctx context.Context, tokens *queue.Service, logger observability.Logger, d amqp.Delivery) {
	var ev payment.SettledEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		logger.Error("failed to decode settled event", err)
		d.Nack(false, false)
		return
	}
	if err := tokens.ReleaseUser(ctx, ev.UserID); err != nil {
		logger.WithField("reservation_id", ev.ReservationID).Error("failed to release token", err)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}
