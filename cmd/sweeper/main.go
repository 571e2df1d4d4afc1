package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/concert-reservations/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/concert-reservations/internal/adapters/mongo"
	"github.com/robertarktes/concert-reservations/internal/clock"
	"github.com/robertarktes/concert-reservations/internal/config"
	"github.com/robertarktes/concert-reservations/internal/observability"
	"github.com/robertarktes/concert-reservations/internal/queue"
	"github.com/robertarktes/concert-reservations/internal/reservation"
	"github.com/robertarktes/concert-reservations/internal/sweeper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	auditor := mongoadapter.NewAuditLogger(mongoClient.Database("concert"), logger)

	clk := clock.NewSystem()
	tokenStore := crdb.NewTokenStore(repo)
	seatStore := crdb.NewSeatStore(repo)
	resStore := crdb.NewReservationStore(repo)

	tokens := queue.NewService(tokenStore, clk, queue.Config{
		MaxActive:   cfg.MaxActiveTokens,
		SessionTTL:  cfg.TokenSessionTTL,
		WaitPerSlot: cfg.WaitPerSlot,
	}, logger)
	reservations := reservation.NewService(seatStore, resStore, tokens, auditor, clk, cfg.HoldTTL, logger)

	worker := sweeper.New(tokens, reservations, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, cfg.SweepInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown sweeper")
}
