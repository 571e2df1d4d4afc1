package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/concert-reservations/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/concert-reservations/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/concert-reservations/internal/adapters/redis"
	"github.com/robertarktes/concert-reservations/internal/clock"
	"github.com/robertarktes/concert-reservations/internal/concert"
	"github.com/robertarktes/concert-reservations/internal/config"
	httphandler "github.com/robertarktes/concert-reservations/internal/http"
	"github.com/robertarktes/concert-reservations/internal/idempotency"
	"github.com/robertarktes/concert-reservations/internal/observability"
	"github.com/robertarktes/concert-reservations/internal/payment"
	"github.com/robertarktes/concert-reservations/internal/queue"
	"github.com/robertarktes/concert-reservations/internal/rateLimit"
	"github.com/robertarktes/concert-reservations/internal/reservation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	auditor := mongoadapter.NewAuditLogger(mongoClient.Database("concert"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	clk := clock.NewSystem()
	tokenStore := crdb.NewTokenStore(repo)
	seatStore := crdb.NewSeatStore(repo)
	resStore := crdb.NewReservationStore(repo)
	userStore := crdb.NewUserStore(repo)
	outboxStore := crdb.NewOutboxStore(repo)
	concertStore := crdb.NewConcertStore(repo)

	tokens := queue.NewService(tokenStore, clk, queue.Config{
		MaxActive:   cfg.MaxActiveTokens,
		SessionTTL:  cfg.TokenSessionTTL,
		WaitPerSlot: cfg.WaitPerSlot,
	}, logger)
	reservations := reservation.NewService(seatStore, resStore, tokens, auditor, clk, cfg.HoldTTL, logger)
	payments := payment.NewService(reservations, seatStore, userStore, outboxStore, repo, auditor, logger)
	concerts := concert.NewService(concertStore)

	handlers := httphandler.NewHandlers(cfg, tokens, reservations, payments, concerts, redisCache, idemp, logger)
	r := httphandler.SetupRouter(handlers, tokens, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
