package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
)

var _ adapter.Completer = (*HTTPCompleter)(nil)

const completionTemperature = 0.7

// HTTPCompleter calls any registered provider over plain HTTP, using the
// registry's endpoint, auth header and JSON paths.
type HTTPCompleter struct {
	client *http.Client
}

func NewHTTPCompleter(client *http.Client) *HTTPCompleter {
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &HTTPCompleter{client: client}
}

func (h *HTTPCompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	perr := func(code int, err error) error {
		return &domain.ProviderError{Provider: string(p.Key), StatusCode: code, Err: err}
	}
	if p.APIKey == "" {
		return adapter.Completion{}, perr(0, errors.New("api key not configured"))
	}

	body, err := buildBody(p, prompt)
	if err != nil {
		return adapter.Completion{}, perr(0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return adapter.Completion{}, perr(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(p.AuthHeader, p.AuthPrefix+p.APIKey)
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return adapter.Completion{}, perr(0, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return adapter.Completion{}, perr(resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = truncate(string(raw), 200)
		}
		return adapter.Completion{}, perr(resp.StatusCode, errors.New(msg))
	}
	return extract(p, raw)
}

func buildBody(p model.ProviderConfig, prompt string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if p.BodyStyle == model.BodyStyleGemini {
		b, err = sjson.SetRawBytes([]byte(`{}`), "contents", []byte(`[{"role":"user","parts":[{"text":""}]}]`))
		if err == nil {
			b, err = sjson.SetBytes(b, "contents.0.parts.0.text", prompt)
		}
		if err == nil {
			b, err = sjson.SetBytes(b, "generationConfig.maxOutputTokens", p.MaxTokens)
		}
		if err == nil {
			b, err = sjson.SetBytes(b, "generationConfig.temperature", completionTemperature)
		}
		return b, err
	}

	b, err = sjson.SetBytes([]byte(`{}`), "model", p.Model)
	if err == nil {
		b, err = sjson.SetBytes(b, "messages", []adapter.Message{{Role: "user", Content: prompt}})
	}
	if err == nil {
		b, err = sjson.SetBytes(b, "max_tokens", p.MaxTokens)
	}
	if err == nil {
		b, err = sjson.SetBytes(b, "temperature", completionTemperature)
	}
	return b, err
}

// extract applies the provider's text path and sums its token paths.
func extract(p model.ProviderConfig, raw []byte) (adapter.Completion, error) {
	text := gjson.GetBytes(raw, p.TextPath)
	if !text.Exists() || text.String() == "" {
		return adapter.Completion{}, &domain.ProviderError{
			Provider: string(p.Key),
			Err:      fmt.Errorf("response has no %s", p.TextPath),
		}
	}
	tokens := 0
	for _, path := range p.TokenPaths {
		tokens += int(gjson.GetBytes(raw, path).Int())
	}
	return adapter.Completion{Text: text.String(), TokenUsage: tokens}, nil
}
