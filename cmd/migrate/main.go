package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"cute-chat/config"
	"cute-chat/pkg/database"
	"cute-chat/pkg/logger"
)

const usage = `
Cute Chat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create collection indexes
  status      Show database connection status and document counts
  seed-dev    Seed with development/test data
  truncate    Delete every document (DANGEROUS)

Flags:
  -conversation string  Conversation id for seed-dev (default "demo")
  -users int            Number of seeded users (default 3)
  -messages int         Number of seeded messages (default 45)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev -messages 100
  go run cmd/migrate/main.go status
`

func main() {
	seed := database.DefaultSeedConfig()
	flag.StringVar(&seed.ConversationID, "conversation", seed.ConversationID, "Conversation id for seed-dev")
	flag.IntVar(&seed.UserCount, "users", seed.UserCount, "Number of seeded users")
	flag.IntVar(&seed.MessageCount, "messages", seed.MessageCount, "Number of seeded messages")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	command := flag.Arg(0)

	cfg := config.LoadConfig()
	l := logger.New(cfg.LogMode)
	defer l.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := database.Connect(ctx, cfg, l)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close(client)
	db := client.Database(cfg.MongoDB)

	switch command {
	case "up":
		log.Println("🚀 Creating indexes...")
		if err := database.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✅ Indexes created successfully!")
		log.Println("🕒 Normalizing message timestamps...")
		report, err := database.NormalizeTimestamps(ctx, db)
		if err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Printf("✅ Converted %d message timestamps", report.Converted)
		if report.Remaining > 0 {
			log.Printf("⚠️  %d messages still have an unparseable createdAt", report.Remaining)
		}
	case "status":
		log.Println("🔍 Checking database status...")
		if err := database.HealthCheck(ctx, client); err != nil {
			log.Fatalf("❌ Database connection failed: %v", err)
		}
		log.Println("✅ Database connection: OK")
		counts, err := database.CollectionCounts(ctx, db)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		for _, name := range database.Collections {
			log.Printf("✅ Collection %-12s %d documents", name, counts[name])
		}
	case "seed-dev":
		log.Println("🌱 Seeding database (development mode)...")
		if err := database.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		result, err := database.Seed(ctx, db, seed, l)
		if err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
		log.Println("📊 Seed Summary:")
		log.Printf("   - Conversation: %s", result.ConversationID)
		log.Printf("   - Users: %v", result.UserIDs)
		log.Printf("   - Messages: %d", result.Messages)
		log.Println("✅ Development seeding completed!")
	case "truncate":
		log.Println("⚠️  WARNING: This will delete every document!")
		if err := database.Truncate(ctx, db); err != nil {
			log.Fatalf("❌ Truncate failed: %v", err)
		}
		log.Println("✅ All collections truncated!")
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
