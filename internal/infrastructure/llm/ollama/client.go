// Package ollama talks to a local Ollama server for classification,
// extraction and synthesis over case documents.
package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/casefile/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client

	limiter     *rate.Limiter
	executor    *resilience.Executor
	callTimeout time.Duration
}

type Options struct {
	// RequestsPerSecond caps inference calls across the whole process.
	// Zero disables the limiter.
	RequestsPerSecond float64
	CallTimeout       time.Duration
	Executor          *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	callTimeout := options.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		httpClient:  &http.Client{},
		limiter:     limiter,
		executor:    options.Executor,
		callTimeout: callTimeout,
	}
}

type generateRequest struct {
	prompt      string
	attachments [][]byte
	maxTokens   int
	think       bool
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body := map[string]any{
		"model":  c.model,
		"prompt": req.prompt,
		"stream": false,
		"think":  req.think,
	}
	if req.maxTokens > 0 {
		body["options"] = map[string]any{"num_predict": req.maxTokens}
	}
	if len(req.attachments) > 0 {
		images := make([]string, 0, len(req.attachments))
		for _, attachment := range req.attachments {
			images = append(images, base64.StdEncoding.EncodeToString(attachment))
		}
		body["images"] = images
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		callCtx, cancel := context.WithTimeout(callCtx, c.callTimeout)
		defer cancel()
		return c.postJSON(callCtx, "/api/generate", body, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}
