package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"stock_sync/internal/app/di"
	"stock_sync/internal/app/router"
	synctaskhandler "stock_sync/internal/feature/synctask/transport/handler"
	"stock_sync/internal/feature/synctask/usecase"
	infradb "stock_sync/internal/platform/db"
	"stock_sync/internal/platform/logging"
	infraredis "stock_sync/internal/platform/redis"
	"stock_sync/internal/platform/scheduler"
	"stock_sync/internal/platform/webhookauth"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Println("[WARN] failed to load .env:", err)
	}
	logging.Setup()

	// db
	db, err := infradb.OpenDB()
	if err != nil {
		log.Fatal(err)
	}

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(context.Background()); err != nil {
		log.Println("[WARN] Redis unavailable. Run status is kept in memory only.")
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	// Usecase
	syncUC := di.NewSyncUsecase(db, nil)
	coord := di.NewCoordinator(syncUC, rdb)

	// Handler
	triggerH := synctaskhandler.NewTriggerHandler(coord)

	// ルータ生成
	r := router.NewRouter(triggerH)

	if os.Getenv(webhookauth.EnvKeyWebhookToken) == "" {
		log.Println("[WARN] WEBHOOK_TOKEN is not set. The trigger endpoint will answer 500.")
	}

	// 任意: プロセス内スケジュール
	var sched *scheduler.Scheduler
	if expr := os.Getenv("SYNC_CRON"); expr != "" {
		sched, err = scheduler.New(expr, coord, usecase.ErrAlreadyRunning)
		if err != nil {
			log.Fatal(err)
		}
		sched.Start()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()
	log.Println("listening on :" + port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("[ERROR] HTTP shutdown:", err)
	}
	if err := coord.Shutdown(shutdownCtx); err != nil {
		log.Println("[WARN] background sync still running at shutdown:", err)
	}
}
