package escalate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nextrust/pkg/protocol"

	openai "github.com/sashabaranov/go-openai"
)

// DesignBackend is the design escalation service: OpenAI chat completions
// with a reasoning-class model. Priced per token, so it is consulted only
// when the dispatcher decides a failure is architectural.
type DesignBackend struct {
	client *openai.Client
	model  string
	maxOut int
}

// DesignOpts configures the design backend.
type DesignOpts struct {
	APIKey  string
	BaseURL string // optional override of the API endpoint
	Model   string // default "o3"
	MaxOut  int    // completion token cap (default 4096)
}

// NewDesignBackend creates the OpenAI-backed design service. A missing API
// key is a configuration error, reported as permanent so the client never
// retries it.
func NewDesignBackend(opts DesignOpts) (*DesignBackend, error) {
	if opts.APIKey == "" {
		return nil, &protocol.CredentialError{Service: string(DesignService), EnvVar: "OPENAI_API_KEY"}
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = "o3"
	}
	maxOut := opts.MaxOut
	if maxOut == 0 {
		maxOut = 4096
	}
	return &DesignBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		maxOut: maxOut,
	}, nil
}

// Service implements Backend.
func (b *DesignBackend) Service() Service { return DesignService }

// Model implements Backend.
func (b *DesignBackend) Model() string { return b.model }

// Invoke implements Backend.
func (b *DesignBackend) Invoke(ctx context.Context, req Request) (Response, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemInstruction(DesignService)},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(req)},
		},
		MaxCompletionTokens: b.maxOut,
	})
	if err != nil {
		return Response{}, b.classify(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, &BackendError{
			Service: DesignService,
			Kind:    KindTransient,
			Err:     errors.New("empty choices in completion response"),
		}
	}
	return Response{
		Text: resp.Choices[0].Message.Content,
		Tokens: protocol.TokenCounts{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
			Total:  resp.Usage.TotalTokens,
		},
	}, nil
}

// classify maps OpenAI API errors onto the retry taxonomy. 401/403 and
// request-shape errors are permanent; a 429 carrying insufficient_quota is
// a billing-quota stop, everything else (rate limits, 5xx, transport) is
// transient.
func (b *DesignBackend) classify(err error) error {
	kind := KindTransient

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			kind = KindPermanent
		case apiErr.HTTPStatusCode == 400 || apiErr.HTTPStatusCode == 404 || apiErr.HTTPStatusCode == 422:
			kind = KindPermanent
		case apiErr.HTTPStatusCode == 429 && strings.Contains(fmt.Sprint(apiErr.Code), "insufficient_quota"):
			kind = KindQuota
		}
	}

	return &BackendError{Service: DesignService, Kind: kind, Err: err}
}
