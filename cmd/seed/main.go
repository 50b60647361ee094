// Seeds a handful of demo accounts and a message history between them, so a
// fresh environment has conversations to look at.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/makroxyz/simplechat/internal/repository"
	"github.com/makroxyz/simplechat/pkg/utils"
)

const demoPassword = "password123"

var demoUsers = []struct {
	email       string
	displayName string
}{
	{"alice@example.com", "Alice"},
	{"bob@example.com", "Bob"},
	{"carol@example.com", "Carol"},
}

var demoThreads = []struct {
	from, to int
	text     string
}{
	{0, 1, "Hey Bob, are we still on for Friday?"},
	{1, 0, "Yes! 7pm works for me."},
	{0, 1, "Perfect, see you then."},
	{2, 0, "Alice, did you get my notes?"},
	{0, 2, "Got them, thanks Carol."},
	{1, 2, "Carol, welcome aboard!"},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbUrl := os.Getenv("DB_URL")
	if dbUrl == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbUrl)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	hash, err := utils.HashPassword(demoPassword)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	ids := make([]int64, len(demoUsers))
	for i, u := range demoUsers {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO users (email, password_hash)
			VALUES ($1, $2)
			ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
			RETURNING id
		`, u.email, hash).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.email, err)
		}
		ids[i] = id

		if _, err := pool.Exec(ctx, `
			INSERT INTO user_profiles (user_id, display_name)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET display_name = $2, updated_at = NOW()
		`, id, u.displayName); err != nil {
			log.Fatalf("Failed to seed profile for %s: %v", u.email, err)
		}
	}

	messageRepo := repository.NewMessageRepository(pool)
	for i, m := range demoThreads {
		if _, err := messageRepo.Create(ctx, ids[m.from], ids[m.to], m.text); err != nil {
			log.Fatalf("Failed to seed message %d: %v", i, err)
		}
		// keep created_at strictly increasing for a readable history
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("Seeded %d users and %d messages (password %q)\n",
		len(demoUsers), len(demoThreads), demoPassword)
}
