package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zyra-ai/zyra/internal/pkg/config"
	"github.com/zyra-ai/zyra/internal/pkg/httpclient"
	"github.com/zyra-ai/zyra/internal/pkg/queue"
)

// TokenSource issues bearer tokens for trigger requests.
type TokenSource interface {
	GenerateServiceToken(service string) (string, error)
}

// Doer sends trigger requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTrigger posts the execution request to the background-executions
// endpoint of the API.
type HTTPTrigger struct {
	url    string
	client Doer
	tokens TokenSource
}

func NewHTTPTrigger(url string, timeout time.Duration, tokens TokenSource) *HTTPTrigger {
	poolCfg := httpclient.DefaultConfig()
	poolCfg.ResponseTimeout = timeout
	return &HTTPTrigger{
		url:    url,
		client: httpclient.NewPooledClient(poolCfg),
		tokens: tokens,
	}
}

// WithClient replaces the default pooled client.
func (t *HTTPTrigger) WithClient(client Doer) *HTTPTrigger {
	t.client = client
	return t
}

func (t *HTTPTrigger) Mode() string {
	return config.TriggerModeHTTP
}

func (t *HTTPTrigger) Trigger(ctx context.Context, payload queue.ScheduleTriggerPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if t.tokens != nil {
		token, err := t.tokens.GenerateServiceToken(payload.TriggeredBy)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("trigger request returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// PoolConfig derives the trigger client settings from scheduler config.
func PoolConfig(cfg *config.SchedulerConfig) httpclient.Config {
	poolCfg := httpclient.DefaultConfig()
	poolCfg.ResponseTimeout = cfg.TriggerTimeout
	if cfg.BreakerFailures > 0 {
		poolCfg.BreakerFailures = cfg.BreakerFailures
	}
	if cfg.BreakerTimeout > 0 {
		poolCfg.BreakerTimeout = cfg.BreakerTimeout
	}
	return poolCfg
}
