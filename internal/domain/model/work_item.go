package model

import (
	"fmt"
	"time"
)

type WorkItemKind string

const (
	KindQuestionGeneration WorkItemKind = "question_generation"
	KindAnswerGeneration   WorkItemKind = "answer_generation"
)

type WorkItemStatus string

const (
	StatusPending            WorkItemStatus = "pending"
	StatusInProgress         WorkItemStatus = "in_progress"
	StatusQuestionsGenerated WorkItemStatus = "questions_generated"
	StatusCompleted          WorkItemStatus = "completed"
	StatusFailed             WorkItemStatus = "failed"
)

// QuestionApproved is the review_questions.question_status value that makes a row
// eligible for answer generation.
const QuestionApproved = "question_approved"

// WorkItem is one persisted unit of AI generation work: a construct_faq_pairs row
// (question generation) or a review_questions row (answer generation).
type WorkItem struct {
	ID           string
	Kind         WorkItemKind
	UserID       string
	BatchID      string
	Request      string
	Status       WorkItemStatus
	Result       *string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WorkItemPolicy describes the status transitions of one work item kind.
type WorkItemPolicy struct {
	Kind           WorkItemKind
	Pending        WorkItemStatus
	Claimed        WorkItemStatus
	Success        WorkItemStatus
	Failed         WorkItemStatus
	RetryOnFailure bool
}

// QuestionGenerationPolicy resets failed items to pending so the next invocation retries them.
func QuestionGenerationPolicy(retryOnFailure bool) WorkItemPolicy {
	return WorkItemPolicy{
		Kind:           KindQuestionGeneration,
		Pending:        StatusPending,
		Claimed:        StatusInProgress,
		Success:        StatusQuestionsGenerated,
		Failed:         StatusFailed,
		RetryOnFailure: retryOnFailure,
	}
}

// AnswerGenerationPolicy parks failed items in the terminal failed status.
func AnswerGenerationPolicy(retryOnFailure bool) WorkItemPolicy {
	return WorkItemPolicy{
		Kind:           KindAnswerGeneration,
		Pending:        StatusPending,
		Claimed:        StatusInProgress,
		Success:        StatusCompleted,
		Failed:         StatusFailed,
		RetryOnFailure: retryOnFailure,
	}
}

// Eligible is the selection predicate: pending and no result yet.
func (p WorkItemPolicy) Eligible(it *WorkItem) bool {
	return it != nil && it.Status == p.Pending && it.Result == nil
}

// FailureStatus is where an item lands after an upstream failure.
func (p WorkItemPolicy) FailureStatus() WorkItemStatus {
	if p.RetryOnFailure {
		return p.Pending
	}
	return p.Failed
}

func (p WorkItemPolicy) Validate() error {
	if p.Kind != KindQuestionGeneration && p.Kind != KindAnswerGeneration {
		return fmt.Errorf("unknown work item kind %q", p.Kind)
	}
	if p.Pending == "" || p.Success == "" {
		return fmt.Errorf("work item policy %s: pending and success statuses are required", p.Kind)
	}
	return nil
}

// WorkFilter narrows the selection query. Empty fields do not filter.
type WorkFilter struct {
	UserID  string
	BatchID string
	IDs     []string
}

// Matches applies the filter to an in-memory item.
func (f WorkFilter) Matches(it *WorkItem) bool {
	if f.UserID != "" && it.UserID != f.UserID {
		return false
	}
	if f.BatchID != "" && it.BatchID != f.BatchID {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == it.ID {
				return true
			}
		}
		return false
	}
	return true
}

// QuestionRecord is an answered FAQ question that can be performance tested.
type QuestionRecord struct {
	ID             string
	UserID         string
	Question       string
	ExpectedAnswer string
}
