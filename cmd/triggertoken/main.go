// Command triggertoken prints a short-lived signed token accepted by POST /webhook.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stock_sync/internal/platform/webhookauth"
)

func main() {
	ttl := flag.Duration("ttl", 10*time.Minute, "token lifetime")
	sub := flag.String("sub", "scheduler", "caller name recorded in the token subject")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Println("[WARN] failed to load .env:", err)
	}

	secret := os.Getenv(webhookauth.EnvKeyWebhookToken)
	if secret == "" {
		log.Fatal("WEBHOOK_TOKEN is not set")
	}

	token, err := webhookauth.NewGenerator(secret, *ttl).GenerateToken(*sub)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
