// Package gemini is a rate limited Gemini client answering scoring prompts with JSON.
package gemini

import (
	"context"
	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"strings"
	"time"
)

type Model string

const (
	//Model15Flash is fastest multimodal model with great performance for diverse, repetitive tasks
	Model15Flash Model = "gemini-1.5-flash"
	//Model15Flash8b is the smallest model for lower intelligence use cases
	Model15Flash8b Model = "gemini-1.5-flash-8b"
	//Model15Pro is next-generation model with a breakthrough 2 million context window
	Model15Pro Model = "gemini-1.5-pro"
)

var ErrEmptyResponse = errors.New("gemini returned no text")

type Options struct {
	APIKey               string
	Model                Model
	MaxRequestsPerMinute float32
	MaxRequestsPerDay    float32
}

type Client struct {
	client            *genai.Client
	model             *genai.GenerativeModel
	minuteRateLimiter *rate.Limiter
	dayRateLimiter    *rate.Limiter
	retryDelay        time.Duration
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {

	if opts.APIKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if opts.Model == "" {
		opts.Model = Model15Flash
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	genModel := client.GenerativeModel(string(opts.Model))
	genModel.ResponseMIMEType = "application/json"
	genModel.SetTemperature(0.2)

	c := &Client{client: client, model: genModel, retryDelay: 2 * time.Second}
	if opts.MaxRequestsPerMinute > 0 {
		c.minuteRateLimiter = rate.NewLimiter(rate.Limit(opts.MaxRequestsPerMinute/60), 1)
	}
	if opts.MaxRequestsPerDay > 0 {
		c.dayRateLimiter = rate.NewLimiter(rate.Limit(opts.MaxRequestsPerDay/86400), int(opts.MaxRequestsPerDay))
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateResponse sends the prompt and returns the model's text. Server errors are retried twice.
func (c *Client) GenerateResponse(ctx context.Context, text string) (string, error) {

	var resp string
	var err error

	_, _, _ = lo.AttemptWhileWithDelay(3, c.retryDelay, func(i int, _ time.Duration) (error, bool) {
		if i > 0 {
			log.Warnf("gemini api failed with %v, retrying...", err)
		}
		resp, err = c.waitAndGenerateResponse(ctx, text)
		return err, isRetryable(err) && ctx.Err() == nil
	})

	return resp, err
}

func (c *Client) waitAndGenerateResponse(ctx context.Context, text string) (string, error) {

	limiters := []*rate.Limiter{c.minuteRateLimiter, c.dayRateLimiter}
	for _, limiter := range limiters {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
	}

	response, err := c.model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", err
	}
	return extractText(response)
}

func extractText(response *genai.GenerateContentResponse) (string, error) {
	if response == nil || len(response.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := response.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			b.WriteString(string(textPart))
		}
	}
	if b.Len() == 0 {
		return "", errors.Wrapf(ErrEmptyResponse, "finish reason %v", candidate.FinishReason)
	}
	return b.String(), nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 500") || strings.Contains(msg, "Error 503")
}
