package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/logger"
	"jee-solver/api/internal/util"
)

const engineName = "gpt"

type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	Opts    gateway.Options

	client  *goopenai.Client
	log     *logger.Logger
	backoff time.Duration
}

// New builds an engine; an empty baseURL means api.openai.com.
func New(apiKey, model, baseURL string, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	apiKey = strings.TrimSpace(apiKey)
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	return &Engine{
		APIKey:  apiKey,
		Model:   strings.TrimSpace(model),
		BaseURL: baseURL,
		Opts:    gateway.DefaultOptions(),
		client:  goopenai.NewClientWithConfig(cfg),
		log:     log,
		backoff: 300 * time.Millisecond,
	}
}

func (e *Engine) Name() string     { return engineName }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) WithModel(model string) gateway.Gateway {
	cp := *e
	cp.Model = strings.TrimSpace(model)
	return &cp
}

func (e *Engine) Generate(ctx context.Context, in gateway.Request) (string, error) {
	if e.APIKey == "" {
		return "", gateway.NewError(engineName, gateway.KindConfig, errors.New("OPENAI_API_KEY not set"))
	}
	msg, err := userMessage(in)
	if err != nil {
		return "", gateway.NewError(engineName, gateway.KindConfig, err)
	}
	req := goopenai.ChatCompletionRequest{
		Model:               e.Model,
		Messages:            []goopenai.ChatCompletionMessage{msg},
		Temperature:         e.Opts.Temperature,
		TopP:                e.Opts.TopP,
		MaxCompletionTokens: int(e.Opts.MaxOutputTokens),
	}

	attempts := max(e.Opts.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := e.client.CreateChatCompletion(ctx, req)
		took := time.Since(start)
		if err != nil {
			lastErr = err
			e.log.Warn("openai generate failed", "model", e.Model, "attempt", attempt, "duration", took, "err", err)
			if !retryable(err) || attempt == attempts || !sleepCtx(ctx, time.Duration(attempt)*e.backoff) {
				break
			}
			continue
		}
		e.log.Debug("openai generate", "model", e.Model, "attempt", attempt, "duration", took)
		if len(resp.Choices) == 0 {
			return "", gateway.NewError(engineName, gateway.KindEmpty, errors.New("no choices"))
		}
		txt := util.StripCodeFences(resp.Choices[0].Message.Content)
		if txt == "" {
			return "", gateway.NewError(engineName, gateway.KindEmpty, errors.New("empty response"))
		}
		return txt, nil
	}
	return "", gateway.NewError(engineName, gateway.KindTransport, lastErr)
}

// userMessage uses Content for text only and MultiContent when an image is attached.
func userMessage(in gateway.Request) (goopenai.ChatCompletionMessage, error) {
	msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	var imageURL string
	switch {
	case len(in.Image) > 0:
		mime := util.PickMIME(in.MIME, "", in.Image)
		if !isOpenAIImageMIME(mime) {
			return msg, fmt.Errorf("unsupported MIME %s (need image/jpeg|png|gif|webp)", mime)
		}
		imageURL = util.EncodeDataURL(mime, in.Image)
	case in.ImageURL != "":
		imageURL = in.ImageURL
	default:
		msg.Content = in.Prompt
		return msg, nil
	}
	msg.MultiContent = []goopenai.ChatMessagePart{
		{Type: goopenai.ChatMessagePartTypeText, Text: in.Prompt},
		{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
			URL:    imageURL,
			Detail: goopenai.ImageURLDetailHigh,
		}},
	}
	return msg, nil
}

// retryable reports network errors, 429 and 5xx. Other 4xx are final.
func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func isOpenAIImageMIME(m string) bool {
	m = strings.ToLower(strings.TrimSpace(m))
	switch m {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
