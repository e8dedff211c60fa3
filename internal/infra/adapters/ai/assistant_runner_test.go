//go:build !integration

package ai_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"brandaion/internal/domain"
	ai "brandaion/internal/infra/adapters/ai"
)

// fakeClock moves forward only when the runner sleeps.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return nil
}

// fakeAssistantAPI serves the thread/run endpoints for one thread and one run.
type fakeAssistantAPI struct {
	threadStatus int
	messageCode  int
	runCode      int
	// runStatus returns the poll response for the n-th poll (1-based).
	runStatus func(n int) (int, string)
	messages  string

	polls   atomic.Int32
	cancels atomic.Int32
	betaHdr atomic.Value
	lastMsg atomic.Value
}

func (f *fakeAssistantAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.betaHdr.Store(r.Header.Get("OpenAI-Beta"))
	if r.Header.Get("Authorization") != "Bearer sk-test" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	write := func(code int, body string) {
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/threads":
		write(f.threadStatus, `{"id":"thread_1"}`)
	case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/messages":
		b, _ := io.ReadAll(r.Body)
		f.lastMsg.Store(string(b))
		write(f.messageCode, `{"id":"msg_1"}`)
	case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/runs":
		write(f.runCode, `{"id":"run_1","status":"queued"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/runs/run_1":
		n := int(f.polls.Add(1))
		code, body := f.runStatus(n)
		write(code, body)
	case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_1/runs/run_1/cancel":
		f.cancels.Add(1)
		write(http.StatusOK, `{"id":"run_1","status":"cancelling"}`)
	case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_1/messages":
		write(http.StatusOK, f.messages)
	default:
		write(http.StatusNotFound, `{"error":{"message":"no route"}}`)
	}
}

func always(status string) func(int) (int, string) {
	return func(int) (int, string) { return http.StatusOK, `{"id":"run_1","status":"` + status + `"}` }
}

func newRunner(t *testing.T, api *fakeAssistantAPI, interval time.Duration, clock *fakeClock) *ai.AssistantRunner {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	r, err := ai.NewAssistantRunner(ai.AssistantOptions{
		BaseURL:      srv.URL,
		APIKey:       "sk-test",
		PollInterval: interval,
		MaxAttempts:  30,
		MaxWait:      5 * time.Minute,
		Clock:        clock,
	}, nil)
	if err != nil {
		t.Fatalf("NewAssistantRunner: %v", err)
	}
	return r
}

func TestAssistantRunner_Completes(t *testing.T) {
	t.Parallel()

	api := &fakeAssistantAPI{
		runStatus: func(n int) (int, string) {
			if n < 3 {
				return http.StatusOK, `{"id":"run_1","status":"in_progress"}`
			}
			return http.StatusOK, `{"id":"run_1","status":"completed","usage":{"total_tokens":321}}`
		},
		messages: `{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"Q1...\nQ2...\nQ3..."}}]}]}`,
	}
	r := newRunner(t, api, 2*time.Second, newFakeClock())

	reply, err := r.Run(context.Background(), "List 3 FAQs about pricing", "asst_1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text != "Q1...\nQ2...\nQ3..." {
		t.Fatalf("unexpected text %q", reply.Text)
	}
	if reply.Attempts != 3 || reply.TotalTokens != 321 {
		t.Fatalf("unexpected attempts/tokens: %+v", reply)
	}
	if got := api.betaHdr.Load(); got != "assistants=v2" {
		t.Fatalf("missing OpenAI-Beta header, got %v", got)
	}
	if msg, _ := api.lastMsg.Load().(string); !strings.Contains(msg, "List 3 FAQs about pricing") {
		t.Fatalf("request text not posted: %s", msg)
	}
}

func TestAssistantRunner_AttemptCeiling(t *testing.T) {
	t.Parallel()

	api := &fakeAssistantAPI{runStatus: always("in_progress")}
	clock := newFakeClock()
	start := clock.Now()
	r := newRunner(t, api, 2*time.Second, clock)

	_, err := r.Run(context.Background(), "x", "asst_1")
	if !domain.IsStage(err, domain.StageTimeout) {
		t.Fatalf("expected timeout stage, got %v", err)
	}
	if n := api.polls.Load(); n != 30 {
		t.Fatalf("expected exactly 30 polls, got %d", n)
	}
	if elapsed := clock.Now().Sub(start); elapsed != 60*time.Second {
		t.Fatalf("expected 60s simulated, got %s", elapsed)
	}
	if api.cancels.Load() != 1 {
		t.Fatalf("run should be cancelled on timeout")
	}
}

func TestAssistantRunner_WallClockCeiling(t *testing.T) {
	t.Parallel()

	api := &fakeAssistantAPI{runStatus: always("queued")}
	clock := newFakeClock()
	start := clock.Now()
	r := newRunner(t, api, 20*time.Second, clock)

	_, err := r.Run(context.Background(), "x", "asst_1")
	if !domain.IsStage(err, domain.StageTimeout) {
		t.Fatalf("expected timeout stage, got %v", err)
	}
	if n := api.polls.Load(); n >= 30 {
		t.Fatalf("wall clock should stop polling before the attempt ceiling, got %d polls", n)
	}
	if elapsed := clock.Now().Sub(start); elapsed > 5*time.Minute {
		t.Fatalf("polled past the wall clock budget: %s", elapsed)
	}
	if api.cancels.Load() != 1 {
		t.Fatalf("run should be cancelled on timeout")
	}
}

func TestAssistantRunner_Stages(t *testing.T) {
	t.Parallel()

	completed := func(int) (int, string) { return http.StatusOK, `{"id":"run_1","status":"completed"}` }
	cases := []struct {
		name   string
		api    *fakeAssistantAPI
		stage  domain.UpstreamStage
		detail string
	}{
		{"thread", &fakeAssistantAPI{threadStatus: 500, runStatus: completed}, domain.StageCreateThread, ""},
		{"message", &fakeAssistantAPI{messageCode: 400, runStatus: completed}, domain.StagePostMessage, ""},
		{"run", &fakeAssistantAPI{runCode: 404, runStatus: completed}, domain.StageStartRun, ""},
		{"failed", &fakeAssistantAPI{runStatus: func(int) (int, string) {
			return http.StatusOK, `{"id":"run_1","status":"failed","last_error":{"code":"rate_limit_exceeded","message":"quota exhausted"}}`
		}}, domain.StageRunFailed, "quota exhausted"},
		{"expired", &fakeAssistantAPI{runStatus: always("expired")}, domain.StageRunFailed, "expired"},
		{"empty", &fakeAssistantAPI{runStatus: completed, messages: `{"data":[]}`}, domain.StageEmptyResponse, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRunner(t, tc.api, 2*time.Second, newFakeClock())
			_, err := r.Run(context.Background(), "x", "asst_1")
			var ue *domain.UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if ue.Stage != tc.stage {
				t.Fatalf("expected stage %s, got %s (%v)", tc.stage, ue.Stage, err)
			}
			if tc.detail != "" && ue.Detail != tc.detail {
				t.Fatalf("expected detail %q, got %q", tc.detail, ue.Detail)
			}
		})
	}
}

func TestAssistantRunner_PollErrorsKeepPolling(t *testing.T) {
	t.Parallel()

	api := &fakeAssistantAPI{
		runStatus: func(n int) (int, string) {
			if n == 1 {
				return http.StatusBadGateway, `upstream hiccup`
			}
			return http.StatusOK, `{"id":"run_1","status":"completed"}`
		},
		messages: `{"data":[{"content":[{"text":{"value":"answer"}}]}]}`,
	}
	r := newRunner(t, api, 2*time.Second, newFakeClock())

	reply, err := r.Run(context.Background(), "x", "asst_1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text != "answer" || reply.Attempts != 2 {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestAssistantRunner_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAssistantAPI{runStatus: func(n int) (int, string) {
		if n == 2 {
			cancel()
		}
		return http.StatusOK, `{"id":"run_1","status":"in_progress"}`
	}}
	r := newRunner(t, api, 2*time.Second, newFakeClock())

	_, err := r.Run(ctx, "x", "asst_1")
	if !domain.IsStage(err, domain.StageTimeout) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected interrupted timeout, got %v", err)
	}
	if api.cancels.Load() != 1 {
		t.Fatalf("run should be cancelled when the caller goes away")
	}
}
