package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
	OutcomePending OutcomeStatus = "pending"
)

type TestSchedule string

const (
	ScheduleManual  TestSchedule = "manual"
	ScheduleWeekly  TestSchedule = "weekly"
	ScheduleMonthly TestSchedule = "monthly"
)

func (s TestSchedule) Valid() bool {
	switch s {
	case ScheduleManual, ScheduleWeekly, ScheduleMonthly:
		return true
	}
	return false
}

// ProviderOutcome is the result of testing one question against one provider.
// It is written once and never updated.
type ProviderOutcome struct {
	ID             string        `json:"id"`
	TestRunID      string        `json:"test_run_id"`
	QuestionID     string        `json:"question_id"`
	UserID         string        `json:"auth_user_id,omitempty"`
	Question       string        `json:"question"`
	ExpectedAnswer string        `json:"expected_answer"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	ResponseText   string        `json:"response_text"`
	AccuracyScore  float64       `json:"accuracy_score"`
	TokenUsage     int           `json:"token_usage"`
	CostUSD        float64       `json:"cost_usd"`
	ResponseTimeMs int64         `json:"response_time_ms"`
	Status         OutcomeStatus `json:"status"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Schedule       TestSchedule  `json:"test_schedule"`
	TestMonth      time.Time     `json:"test_month"`
	TestedAt       time.Time     `json:"tested_at"`
}

func NewProviderOutcome(runID string, q QuestionRecord, provider string, schedule TestSchedule, now time.Time) *ProviderOutcome {
	return &ProviderOutcome{
		ID:             uuid.NewString(),
		TestRunID:      runID,
		QuestionID:     q.ID,
		UserID:         q.UserID,
		Question:       q.Question,
		ExpectedAnswer: q.ExpectedAnswer,
		Provider:       provider,
		Status:         OutcomePending,
		Schedule:       schedule,
		TestMonth:      MonthOf(now),
		TestedAt:       now,
	}
}

// Fail zeroes the numeric fields, keeping the measured response time.
func (o *ProviderOutcome) Fail(msg string) {
	o.Status = OutcomeError
	o.ErrorMessage = msg
	o.ResponseText = ""
	o.AccuracyScore = 0
	o.TokenUsage = 0
	o.CostUSD = 0
}

// MonthOf returns the first day of t's month in UTC.
func MonthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NewTestRunID returns a lexically sortable id grouping the outcomes of one invocation.
func NewTestRunID() string {
	return ulid.Make().String()
}

// TestSummary aggregates one test run.
type TestSummary struct {
	TestRunID       string  `json:"test_run_id"`
	TotalTests      int     `json:"total_tests"`
	SuccessfulTests int     `json:"successful_tests"`
	FailedTests     int     `json:"failed_tests"`
	TotalCost       float64 `json:"total_cost"`
	TotalTokens     int     `json:"total_tokens"`
	AverageAccuracy float64 `json:"average_accuracy"`
}

// Summarize computes the aggregate; the accuracy average covers successful tests only.
func Summarize(runID string, outcomes []*ProviderOutcome) TestSummary {
	s := TestSummary{TestRunID: runID, TotalTests: len(outcomes)}
	var accuracy float64
	for _, o := range outcomes {
		if o.Status != OutcomeSuccess {
			s.FailedTests++
			continue
		}
		s.SuccessfulTests++
		s.TotalCost += o.CostUSD
		s.TotalTokens += o.TokenUsage
		accuracy += o.AccuracyScore
	}
	s.AverageAccuracy = accuracy / float64(max(1, s.SuccessfulTests))
	return s
}
