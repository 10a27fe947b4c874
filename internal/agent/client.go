// Package agent provides clients for the remote agent gateway that hosts
// the similarity and review agents.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/observability"
)

// Client defaults.
const (
	// DefaultTimeout is the per-call deadline. Agent completions routinely
	// take minutes; the deadline exists to surface hangs, not to race the
	// agent.
	DefaultTimeout = 5 * time.Minute

	// DefaultRateLimit paces calls to one per second, matching the
	// gateway's per-tenant quota.
	DefaultRateLimit = 1.0

	// DefaultBurst is the rate limiter burst size.
	DefaultBurst = 1

	maxResponseBytes = 4 << 20 // 4 MiB
)

// ClientConfig configures the gateway client.
type ClientConfig struct {
	// BaseURL is the gateway base URL without a trailing slash.
	BaseURL string

	// APIKey authenticates requests via the Authorization header.
	APIKey string

	// Timeout is the per-call deadline.
	Timeout time.Duration

	// RateLimit is the maximum calls per second across all agents.
	RateLimit float64

	// Burst is the rate limiter burst size.
	Burst int
}

// Client is a thin HTTP client for the agent gateway's completion endpoint.
// Calls are synchronous, paced by a shared token bucket, and never retried:
// agent completions are expensive and the pipeline isolates failures at the
// page or record level instead.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// completionRequest is the gateway's request envelope.
type completionRequest struct {
	Input completionInput `json:"input"`
}

type completionInput struct {
	Prompt string `json:"prompt"`
}

// completionResponse is the gateway's response envelope. The agent's answer
// arrives as free text in output.text and may wrap JSON in Markdown fences.
type completionResponse struct {
	Output struct {
		Text string `json:"text"`
	} `json:"output"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewClient creates a gateway client.
func NewClient(cfg ClientConfig, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		logger:     logger.With().Str("component", "agent_client").Logger(),
		metrics:    metrics,
	}
}

// Complete sends one prompt to the given gateway application and returns
// the agent's raw output text. agentName labels logs and metrics.
func (c *Client) Complete(ctx context.Context, agentName, appID, prompt string) (string, error) {
	if appID == "" {
		return "", domain.NewAgentCallError(agentName, 0, "application ID not configured", "")
	}

	logger := observability.WithAgentContext(c.logger, agentName, appID)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", domain.NewAgentCallError(agentName, 0, fmt.Sprintf("rate limiter wait: %v", err), "")
	}

	body, err := json.Marshal(completionRequest{Input: completionInput{Prompt: prompt}})
	if err != nil {
		return "", domain.NewAgentCallError(agentName, 0, fmt.Sprintf("marshal request: %v", err), "")
	}

	url := fmt.Sprintf("%s/api/v1/apps/%s/completion", c.baseURL, appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewAgentCallError(agentName, 0, fmt.Sprintf("build request: %v", err), "")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordAgentRequestFailed(agentName, "transport")
		}
		return "", domain.NewAgentCallError(agentName, 0, err.Error(), "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordAgentRequestFailed(agentName, "read_body")
		}
		return "", domain.NewAgentCallError(agentName, resp.StatusCode, fmt.Sprintf("read response: %v", err), "")
	}

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordAgentRequest(agentName, duration.Seconds())
	}

	if resp.StatusCode != http.StatusOK {
		if c.metrics != nil {
			c.metrics.RecordAgentRequestFailed(agentName, fmt.Sprintf("status_%d", resp.StatusCode))
		}
		return "", domain.NewAgentCallError(agentName, resp.StatusCode, "gateway returned non-OK status", string(raw))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if c.metrics != nil {
			c.metrics.RecordAgentRequestFailed(agentName, "malformed_envelope")
		}
		return "", domain.NewAgentCallError(agentName, resp.StatusCode, fmt.Sprintf("decode response: %v", err), string(raw))
	}

	if parsed.Output.Text == "" {
		if c.metrics != nil {
			c.metrics.RecordAgentRequestFailed(agentName, "empty_output")
		}
		msg := parsed.Message
		if msg == "" {
			msg = "empty agent output"
		}
		return "", domain.NewAgentCallError(agentName, resp.StatusCode, msg, string(raw))
	}

	logger.Debug().
		Dur("duration", duration).
		Int("output_bytes", len(parsed.Output.Text)).
		Msg("agent call completed")

	return parsed.Output.Text, nil
}
