// Package openai provides a translate.Provider backed by an OpenAI
// chat-completions model.
//
// It is the fallback translator: slower and costlier than a dedicated MT
// API, but available when the primary backend is down or unconfigured.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/lectern/pkg/provider/translate"
)

const systemPrompt = "You are a translation engine for live lecture subtitles. " +
	"Translate the user's text from %s to %s. " +
	"Reply with the translation only: no quotes, no explanations, no extra text."

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements translate.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs an OpenAI translation Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text, from, to string) (translate.Result, error) {
	if text == "" {
		return translate.Result{}, nil
	}

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(fmt.Sprintf(systemPrompt, languageName(from), languageName(to))),
			oai.UserMessage(text),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return translate.Result{}, ctx.Err()
		}
		return translate.Result{
			Code:    translate.CodeFailed,
			Message: fmt.Sprintf("openai: completion: %v", err),
		}, nil
	}
	if len(resp.Choices) == 0 {
		return translate.Result{
			Code:    translate.CodeFailed,
			Message: "openai: empty completion",
		}, nil
	}
	return translate.Result{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

// languageName expands the ISO codes the pipeline uses into names the model
// is less likely to misread. Unknown codes pass through unchanged.
func languageName(code string) string {
	switch code {
	case "en":
		return "English"
	case "zh":
		return "Simplified Chinese"
	case "ja":
		return "Japanese"
	case "ko":
		return "Korean"
	case "de":
		return "German"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	default:
		return code
	}
}

// Ensure Provider implements translate.Provider at compile time.
var _ translate.Provider = (*Provider)(nil)
