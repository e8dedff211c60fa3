package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"brandaion/internal/domain"
	"brandaion/internal/domain/ports/adapter"
	"brandaion/internal/infra/logging"
	"brandaion/internal/infra/metrics"
)

var _ adapter.AssistantRunner = (*AssistantRunner)(nil)

// Clock is the time source of the poll loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AssistantOptions configures polling. Zero values take the defaults
// (2s interval, 30 attempts, 5 minutes).
type AssistantOptions struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	MaxAttempts  int
	MaxWait      time.Duration
	HTTPClient   *http.Client
	Clock        Clock
}

// AssistantRunner drives the OpenAI Assistants v2 thread/run API over plain HTTP.
type AssistantRunner struct {
	base     string
	apiKey   string
	interval time.Duration
	attempts int
	maxWait  time.Duration
	client   *http.Client
	clock    Clock
	log      *zerolog.Logger
}

func NewAssistantRunner(opts AssistantOptions, logger *zerolog.Logger) (*AssistantRunner, error) {
	if opts.APIKey == "" {
		return nil, errors.New("assistant: api key empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 30
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 5 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "AssistantRunner").Logger()
	return &AssistantRunner{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		interval: opts.PollInterval,
		attempts: opts.MaxAttempts,
		maxWait:  opts.MaxWait,
		client:   opts.HTTPClient,
		clock:    opts.Clock,
		log:      &l,
	}, nil
}

func (a *AssistantRunner) Run(ctx context.Context, requestText, assistantID string) (adapter.AssistantReply, error) {
	log := logging.With(ctx, a.log)
	var reply adapter.AssistantReply

	body, err := a.call(ctx, http.MethodPost, "/threads", map[string]any{})
	if err != nil {
		return reply, a.fail(domain.StageCreateThread, "", err, 0)
	}
	reply.ThreadID = gjson.GetBytes(body, "id").String()
	if reply.ThreadID == "" {
		return reply, a.fail(domain.StageCreateThread, "response has no thread id", nil, 0)
	}
	thread := "/threads/" + reply.ThreadID

	msg := map[string]any{"role": "user", "content": requestText}
	if _, err := a.call(ctx, http.MethodPost, thread+"/messages", msg); err != nil {
		return reply, a.fail(domain.StagePostMessage, "", err, 0)
	}

	body, err = a.call(ctx, http.MethodPost, thread+"/runs", map[string]any{"assistant_id": assistantID})
	if err != nil {
		return reply, a.fail(domain.StageStartRun, "", err, 0)
	}
	reply.RunID = gjson.GetBytes(body, "id").String()
	if reply.RunID == "" {
		return reply, a.fail(domain.StageStartRun, "response has no run id", nil, 0)
	}
	run := thread + "/runs/" + reply.RunID
	log.Debug().Str("thread_id", reply.ThreadID).Str("run_id", reply.RunID).Msg("assistant run started")

	started := a.clock.Now()
	for reply.Attempts < a.attempts {
		if err := a.clock.Sleep(ctx, a.interval); err != nil {
			a.cancelRun(ctx, run)
			return reply, a.fail(domain.StageTimeout, "interrupted", err, reply.Attempts)
		}
		if a.clock.Now().Sub(started) >= a.maxWait {
			break
		}
		reply.Attempts++

		body, err := a.call(ctx, http.MethodGet, run, nil)
		if err != nil {
			log.Warn().Err(err).Int("attempt", reply.Attempts).Msg("poll run status failed")
			continue
		}
		status := gjson.GetBytes(body, "status").String()
		switch status {
		case "completed":
			reply.TotalTokens = int(gjson.GetBytes(body, "usage.total_tokens").Int())
			text, err := a.latestText(ctx, thread)
			if err != nil {
				return reply, a.fail(domain.StageEmptyResponse, "", err, reply.Attempts)
			}
			if strings.TrimSpace(text) == "" {
				return reply, a.fail(domain.StageEmptyResponse, "no message text", nil, reply.Attempts)
			}
			reply.Text = text
			metrics.ObserveAssistantRun("completed", reply.Attempts)
			return reply, nil
		case "failed":
			detail := gjson.GetBytes(body, "last_error.message").String()
			if detail == "" {
				detail = "run failed"
			}
			return reply, a.fail(domain.StageRunFailed, detail, nil, reply.Attempts)
		case "cancelled", "expired", "incomplete":
			return reply, a.fail(domain.StageRunFailed, status, nil, reply.Attempts)
		}
	}

	a.cancelRun(ctx, run)
	detail := fmt.Sprintf("no terminal state after %d attempts in %s", reply.Attempts, a.clock.Now().Sub(started).Round(time.Millisecond))
	return reply, a.fail(domain.StageTimeout, detail, nil, reply.Attempts)
}

// latestText reads the first content block of the newest thread message.
func (a *AssistantRunner) latestText(ctx context.Context, thread string) (string, error) {
	body, err := a.call(ctx, http.MethodGet, thread+"/messages?order=desc&limit=1", nil)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "data.0.content.0.text.value").String(), nil
}

// cancelRun is best effort; the run may already be terminal.
func (a *AssistantRunner) cancelRun(ctx context.Context, run string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := a.call(cctx, http.MethodPost, run+"/cancel", map[string]any{}); err != nil {
		a.log.Warn().Err(err).Str("run", run).Msg("cancel run failed")
	}
}

func (a *AssistantRunner) fail(stage domain.UpstreamStage, detail string, err error, attempts int) error {
	metrics.ObserveAssistantRun(string(stage), attempts)
	return &domain.UpstreamError{Stage: stage, Detail: detail, Err: err}
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("http %d", e.code)
	}
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

func (a *AssistantRunner) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = truncate(string(body), 200)
		}
		return nil, &httpStatusError{code: resp.StatusCode, body: msg}
	}
	return body, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
