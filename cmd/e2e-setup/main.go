package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"brandaion/internal/config"
	"brandaion/internal/domain/model"
	"brandaion/internal/infra/api"
	"brandaion/internal/infra/db/postgres"
	"brandaion/internal/infra/redis"
)

// This script is for setting up a clean, predictable database state
// for manual end-to-end testing.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	user := flag.String("user", "e2e-user", "auth user id for the test token")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// --- Connect to Postgres ---
	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Drop any batch locks left by an interrupted run.
	log.Println("[1/4] Clearing batch locks...")
	if cfg.Redis.URL != "" {
		rc, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer rc.Close()
		var keys []string
		for _, kind := range []model.WorkItemKind{model.KindQuestionGeneration, model.KindAnswerGeneration} {
			keys = append(keys, "batch_lock:"+string(kind)+":all", "batch_lock:"+string(kind)+":"+*user)
		}
		if err := rc.Del(ctx, keys...); err != nil {
			log.Fatalf("failed to clear locks: %v", err)
		}
	}

	// 2. Clean the database completely.
	log.Println("[2/4] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			faq_performance_results, performance_schedules, review_questions, construct_faq_pairs
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 3. One pending batch and one answered question for the test user.
	log.Println("[3/4] Seeding test data...")
	if _, err := pool.Exec(ctx, `
INSERT INTO construct_faq_pairs (user_id, batch_id, ai_request_for_questions)
VALUES ($1, 'e2e', 'Generate 3 FAQ questions about our refund policy.')`, *user); err != nil {
		log.Fatalf("seed batch: %v", err)
	}
	if _, err := pool.Exec(ctx, `
INSERT INTO review_questions (user_id, question, question_status, answer_status, ai_response_answers)
VALUES ($1, 'How long do refunds take?', $2, 'completed', 'Refunds are issued within 5 business days.')`,
		*user, model.QuestionApproved); err != nil {
		log.Fatalf("seed question: %v", err)
	}

	// 4. A bearer token the API accepts for the test user.
	log.Println("[4/4] Minting test token...")
	if v := api.NewTokenVerifier(cfg.Auth.JWTSecret); v != nil {
		tok, err := v.Mint(*user, 24*time.Hour)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Printf("Authorization: Bearer %s\n", tok)
	} else {
		log.Println("auth.jwt_secret not set; requests need no token")
	}

	log.Println("--- ✅ E2E Environment Setup Complete ---")
}
