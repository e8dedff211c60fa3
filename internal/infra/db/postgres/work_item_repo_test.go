//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
)

func insertFAQPair(t *testing.T, userID, batchID, request string, created time.Time) string {
	t.Helper()
	var id string
	err := testPool.QueryRow(context.Background(), `
INSERT INTO construct_faq_pairs (user_id, batch_id, ai_request_for_questions, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $4) RETURNING id::text`, userID, batchID, request, created).Scan(&id)
	if err != nil {
		t.Fatalf("insert construct_faq_pairs: %v", err)
	}
	return id
}

func insertReviewQuestion(t *testing.T, userID, questionStatus, request string) string {
	t.Helper()
	var id string
	err := testPool.QueryRow(context.Background(), `
INSERT INTO review_questions (user_id, question, question_status, ai_request_for_answers)
VALUES ($1, 'What does it cost?', $2, $3) RETURNING id::text`, userID, questionStatus, request).Scan(&id)
	if err != nil {
		t.Fatalf("insert review_questions: %v", err)
	}
	return id
}

func TestWorkItemRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	qRepo := NewQuestionWorkRepo(testPool)
	aRepo := NewAnswerWorkRepo(testPool)
	qp := model.QuestionGenerationPolicy(true)
	ap := model.AnswerGenerationPolicy(false)

	t.Run("should select pending items oldest first and honor filters", func(t *testing.T) {
		cleanup(t)
		now := time.Now()
		second := insertFAQPair(t, "u1", "b1", "later", now)
		first := insertFAQPair(t, "u1", "b1", "earlier", now.Add(-time.Minute))
		_ = insertFAQPair(t, "u2", "b2", "other", now)

		items, err := qRepo.ListEligible(ctx, nil, qp, model.WorkFilter{UserID: "u1"})
		if err != nil {
			t.Fatalf("ListEligible: %v", err)
		}
		if len(items) != 2 || items[0].ID != first || items[1].ID != second {
			t.Fatalf("unexpected selection %+v", items)
		}
		if items[0].Request != "earlier" || items[0].Kind != model.KindQuestionGeneration {
			t.Fatalf("unexpected item %+v", items[0])
		}

		items, err = qRepo.ListEligible(ctx, nil, qp, model.WorkFilter{IDs: []string{second}})
		if err != nil || len(items) != 1 {
			t.Fatalf("id filter: %v %d", err, len(items))
		}
	})

	t.Run("should claim once and report the loser", func(t *testing.T) {
		cleanup(t)
		id := insertFAQPair(t, "u1", "", "req", time.Now())

		it, err := qRepo.Claim(ctx, nil, qp, id)
		if err != nil {
			t.Fatalf("first claim: %v", err)
		}
		if it.Status != model.StatusInProgress {
			t.Fatalf("expected in_progress, got %s", it.Status)
		}
		if _, err := qRepo.Claim(ctx, nil, qp, id); !errors.Is(err, domain.ErrAlreadyClaimed) {
			t.Fatalf("second claim should lose, got %v", err)
		}
		items, _ := qRepo.ListEligible(ctx, nil, qp, model.WorkFilter{})
		if len(items) != 0 {
			t.Fatalf("claimed item must not be selectable")
		}
	})

	t.Run("should write results and failures per policy", func(t *testing.T) {
		cleanup(t)
		ok := insertFAQPair(t, "u1", "", "req", time.Now())
		bad := insertFAQPair(t, "u1", "", "req", time.Now())

		if _, err := qRepo.Claim(ctx, nil, qp, ok); err != nil {
			t.Fatal(err)
		}
		if err := qRepo.MarkSucceeded(ctx, nil, qp, ok, "Q1\nQ2"); err != nil {
			t.Fatalf("MarkSucceeded: %v", err)
		}
		if _, err := qRepo.Claim(ctx, nil, qp, bad); err != nil {
			t.Fatal(err)
		}
		if err := qRepo.MarkFailed(ctx, nil, qp, bad, "assistant timeout"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}

		var status, result string
		_ = testPool.QueryRow(ctx, `SELECT generation_status, ai_response_questions FROM construct_faq_pairs WHERE id = $1`, ok).Scan(&status, &result)
		if status != "questions_generated" || result != "Q1\nQ2" {
			t.Fatalf("unexpected success row %s %q", status, result)
		}
		var msg string
		_ = testPool.QueryRow(ctx, `SELECT generation_status, error_message FROM construct_faq_pairs WHERE id = $1`, bad).Scan(&status, &msg)
		if status != "pending" || msg != "assistant timeout" {
			t.Fatalf("question failure should return to pending with message, got %s %q", status, msg)
		}

		if err := qRepo.MarkSucceeded(ctx, nil, qp, "00000000-0000-0000-0000-000000000000", "x"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("answers require approval and fail terminally", func(t *testing.T) {
		cleanup(t)
		approved := insertReviewQuestion(t, "u1", model.QuestionApproved, "answer it")
		_ = insertReviewQuestion(t, "u1", "pending", "not yet")

		items, err := aRepo.ListEligible(ctx, nil, ap, model.WorkFilter{})
		if err != nil {
			t.Fatalf("ListEligible: %v", err)
		}
		if len(items) != 1 || items[0].ID != approved {
			t.Fatalf("only approved questions are eligible, got %+v", items)
		}
		if _, err := aRepo.Claim(ctx, nil, ap, approved); err != nil {
			t.Fatal(err)
		}
		if err := aRepo.MarkFailed(ctx, nil, ap, approved, "run_failed"); err != nil {
			t.Fatal(err)
		}
		var status string
		_ = testPool.QueryRow(ctx, `SELECT answer_status FROM review_questions WHERE id = $1`, approved).Scan(&status)
		if status != "failed" {
			t.Fatalf("expected failed, got %s", status)
		}
	})

	t.Run("should release stale claims", func(t *testing.T) {
		cleanup(t)
		id := insertFAQPair(t, "u1", "", "req", time.Now())
		if _, err := qRepo.Claim(ctx, nil, qp, id); err != nil {
			t.Fatal(err)
		}
		n, err := qRepo.ReleaseStale(ctx, nil, qp, time.Now().Add(time.Minute))
		if err != nil || n != 1 {
			t.Fatalf("ReleaseStale: %d %v", n, err)
		}
		items, _ := qRepo.ListEligible(ctx, nil, qp, model.WorkFilter{})
		if len(items) != 1 {
			t.Fatalf("released item should be selectable again")
		}
	})

	t.Run("should reject a policy of the wrong kind", func(t *testing.T) {
		if _, err := qRepo.ListEligible(ctx, nil, ap, model.WorkFilter{}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
