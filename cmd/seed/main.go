// Command main runs the database seeder for Ripple.
package main

import (
	"flag"
	"log"

	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of synthetic users to create")
	messages := flag.Int("messages", 20, "Number of messages per chat")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d messages per chat, clean=%v\n", *numUsers, *messages, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(database.DB)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	users, err := s.SeedChats(*numUsers, *messages)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("All done! Seeded user IDs (mint JWTs with these as the subject):")
	for _, id := range users {
		log.Printf("  %s", id)
	}
}
