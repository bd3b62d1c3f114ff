package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"stock_sync/internal/app/di"
	"stock_sync/internal/platform/db"
	"stock_sync/internal/platform/externalapi/listing"
	"stock_sync/internal/platform/logging"
)

func main() {
	tickers := flag.String("tickers", "", "comma separated tickers to sync instead of discovering the universe")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Println("[WARN] failed to load .env:", err)
	}
	logging.Setup()

	gdb, err := db.OpenDB()
	if err != nil {
		log.Fatal("database unreachable: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uc := di.NewSyncUsecase(gdb, listing.SplitTickers(*tickers))
	summary := uc.Run(ctx)

	if summary.Empty() {
		log.Println("[WARN] no tickers found, nothing to sync")
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Println("[ERROR] failed to write summary:", err)
	}

	if summary.AllFailed() {
		log.Fatal("every ticker failed")
	}
	log.Println("ingest ok")
}
