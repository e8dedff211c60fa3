package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"brandaion/internal/config"
	"brandaion/internal/domain/model"
	pg "brandaion/internal/infra/db/postgres"
)

// seed inserts sample FAQ work for one user so the trigger functions have something to process.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	user := flag.String("user", "demo-user", "auth user id to own the sample rows")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	var existing int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM construct_faq_pairs WHERE user_id = $1`, *user).Scan(&existing); err != nil {
		log.Fatalf("count: %v", err)
	}
	if existing > 0 {
		fmt.Printf("%d FAQ batches already present for %s. No changes.\n", existing, *user)
		return
	}

	batches := []struct {
		Topic   string
		Request string
	}{
		{"pricing", "Generate 5 FAQ questions customers ask about our pricing tiers and free trial."},
		{"onboarding", "Generate 5 FAQ questions about getting started and connecting a data source."},
	}
	for i, b := range batches {
		_, err := pool.Exec(ctx, `
INSERT INTO construct_faq_pairs (user_id, batch_id, topic, ai_request_for_questions)
VALUES ($1, $2, $3, $4)`, *user, fmt.Sprintf("seed-%d", i+1), b.Topic, b.Request)
		if err != nil {
			log.Fatalf("insert batch %q: %v", b.Topic, err)
		}
		fmt.Printf("seeded batch: %s\n", b.Topic)
	}

	questions := []string{
		"Is there a free tier?",
		"Can I cancel my subscription at any time?",
	}
	for _, q := range questions {
		_, err := pool.Exec(ctx, `
INSERT INTO review_questions (user_id, question, question_status, ai_request_for_answers)
VALUES ($1, $2, $3, $4)`, *user, q, model.QuestionApproved, "Answer this customer question concisely: "+q)
		if err != nil {
			log.Fatalf("insert question %q: %v", q, err)
		}
		fmt.Printf("seeded approved question: %s\n", q)
	}

	ps := model.NewPerformanceSchedule(*user, model.ScheduleWeekly, nil, time.Now().Add(24*time.Hour).UTC())
	if err := pg.NewScheduleRepo(pool).Save(ctx, nil, ps); err != nil {
		log.Fatalf("save schedule: %v", err)
	}
	fmt.Printf("seeded weekly schedule %s (next run %s)\n", ps.ID, ps.NextRunAt.Format(time.RFC3339))

	fmt.Println("✅ Seeding complete.")
}
