package main

import (
	"fmt"
	"log"
	"time"

	"github.com/oggyb/guestmatch/internal/auth"
	"github.com/oggyb/guestmatch/internal/config"
	"github.com/oggyb/guestmatch/internal/db"
)

func main() {
	// Load configuration
	cfg := config.New()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	res, err := db.SeedTestData(database)
	if err != nil {
		log.Fatalf("failed to seed: %v", err)
	}
	log.Println("Seeding completed.")

	fmt.Printf("event_id:    %s\n", res.EventID)
	fmt.Printf("invite_code: %s\n", db.DemoInviteCode)

	if cfg.Auth.JWTSecret == "" {
		log.Println("AUTH_JWT_SECRET not set; skipping demo tokens")
		return
	}

	// demo session tokens, valid for a day
	tokens := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	ids := append([]string{res.OrganizerID}, res.GuestIDs[:3]...)
	for i, id := range ids {
		token, err := tokens.Issue(id, 24*time.Hour)
		if err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		role := "guest"
		if i == 0 {
			role = "organizer"
		}
		fmt.Printf("%-9s %s\n          %s\n", role, id, token)
	}
}
