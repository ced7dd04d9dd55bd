package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"veritas-backend/internal/logger"
)

const groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// Message is a single chat-completion turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GroqClient talks to Groq's OpenAI-compatible chat completions API.
// Requests pass through a circuit breaker and an RPM limiter so a degraded
// upstream cannot pile up goroutines or burn through the quota.
type GroqClient struct {
	apiKey      string
	model       string
	endpoint    string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
}

func NewGroqClient(apiKey, model, tier string) *GroqClient {
	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GroqAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), maxInt(limits.RPM/10, 1))

	return &GroqClient{
		apiKey:      apiKey,
		model:       model,
		endpoint:    groqEndpoint,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 30, TPM: 30000}
	case "dev":
		return RateLimits{RPM: 300, TPM: 300000}
	default:
		return RateLimits{RPM: 30, TPM: 30000}
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete performs a blocking chat completion and returns the full answer.
func (c *GroqClient) Complete(ctx context.Context, messages []Message) (string, error) {
	tracer := otel.Tracer("groq-client")
	ctx, span := tracer.Start(ctx, "groq.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("groq.model", c.model),
		attribute.Int("groq.messages", len(messages)),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("groq.rate_limited", true))
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.post(ctx, chatRequest{Model: c.model, Messages: messages})
		if err != nil {
			return nil, err
		}
		defer body.Close()

		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %v", err)
		}

		var parsed chatResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %v", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("API error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
		}
		if len(parsed.Choices) == 0 {
			return nil, errors.New("no choices in response")
		}
		return parsed.Choices[0].Message.Content, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("groq.error", true))
		return "", err
	}

	span.SetAttributes(attribute.Bool("groq.success", true))
	return result.(string), nil
}

// CompleteStream starts a streaming chat completion and returns a channel of
// raw token fragments. The channel is closed when the upstream stream ends or
// the context is cancelled.
func (c *GroqClient) CompleteStream(ctx context.Context, messages []Message) (<-chan string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, chatRequest{Model: c.model, Messages: messages, Stream: true})
	})
	if err != nil {
		return nil, err
	}
	body := result.(io.ReadCloser)

	fragments := make(chan string)
	go func() {
		defer close(fragments)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var event struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				logger.Warn("Skipping malformed stream event", "error", err)
				continue
			}
			if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case fragments <- event.Choices[0].Delta.Content:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("Stream read ended with error", "error", err)
		}
	}()

	return fragments, nil
}

func (c *GroqClient) post(ctx context.Context, reqBody chatRequest) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(data))
	}

	return resp.Body, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
