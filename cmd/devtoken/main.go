package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/platform/auth/token"
)

// Mints a session token for local development, skipping the CAS exchange.
//
// Usage:
//   JWT_SECRET=... go run ./cmd/devtoken -username wrm1 -ttl 720h
func main() {
	username := flag.String("username", "devuser", "netid to put in the token subject")
	ttl := flag.Duration("ttl", 720*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	signer := token.NewSigner(secret, *ttl)
	tok, err := signer.Issue(domain.NormalizeUsername(*username))
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(tok)
}
