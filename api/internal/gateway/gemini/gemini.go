package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/logger"
	"jee-solver/api/internal/util"
)

const engineName = "gemini"

type Engine struct {
	APIKey string
	Model  string
	Opts   gateway.Options

	log     *logger.Logger
	backoff time.Duration
}

func New(apiKey, model string, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		APIKey:  strings.TrimSpace(apiKey),
		Model:   strings.TrimSpace(model),
		Opts:    gateway.DefaultOptions(),
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

// Generate sends the prompt, plus the image if any, and returns the raw answer text.
func (e *Engine) Generate(ctx context.Context, in gateway.Request) (string, error) {
	if e.APIKey == "" {
		return "", gateway.NewError(engineName, gateway.KindConfig, errors.New("GEMINI_API_KEY is empty"))
	}
	if e.Model == "" {
		return "", gateway.NewError(engineName, gateway.KindConfig, errors.New("model is empty"))
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", gateway.NewError(engineName, gateway.KindTransport, err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = generationConfig(e.Opts)

	parts := buildParts(in)

	// retry 5xx and transient failures
	attempts := max(e.Opts.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := m.GenerateContent(ctx, parts...)
		took := time.Since(start)
		if err != nil {
			lastErr = err
			e.log.Warn("gemini generate failed", "model", e.Model, "attempt", attempt, "duration", took, "err", err)
			if attempt == attempts || !sleepCtx(ctx, time.Duration(attempt)*e.backoff) {
				break
			}
			continue
		}
		e.log.Debug("gemini generate", "model", e.Model, "attempt", attempt, "duration", took)
		txt := util.StripCodeFences(firstText(resp))
		if txt == "" {
			return "", gateway.NewError(engineName, gateway.KindEmpty, errors.New("empty response"))
		}
		return txt, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr == nil {
		lastErr = ctxErr
	}
	return "", gateway.NewError(engineName, gateway.KindTransport, lastErr)
}

func generationConfig(o gateway.Options) genai.GenerationConfig {
	return genai.GenerationConfig{
		Temperature:     ptr(o.Temperature),
		TopK:            ptr(o.TopK),
		TopP:            ptr(o.TopP),
		MaxOutputTokens: ptr(o.MaxOutputTokens),
	}
}

// buildParts puts the text first, then the image (inline bytes or URI).
func buildParts(in gateway.Request) []genai.Part {
	parts := []genai.Part{genai.Text(in.Prompt)}
	switch {
	case len(in.Image) > 0:
		parts = append(parts, genai.Blob{
			MIMEType: util.PickMIME(in.MIME, "", in.Image),
			Data:     in.Image,
		})
	case in.ImageURL != "":
		parts = append(parts, genai.FileData{
			MIMEType: util.PickMIME(in.MIME, "", nil),
			URI:      in.ImageURL,
		})
	}
	return parts
}

// firstText joins the text parts of the first candidate with content.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
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

func ptr[T any](v T) *T { return &v }
