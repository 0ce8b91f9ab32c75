package escalate

import (
	"context"
	"errors"

	"nextrust/pkg/protocol"

	"google.golang.org/genai"
)

// ReviewBackend is the review escalation service: Gemini generateContent on
// the free tier. Liberally used, but subject to a daily request quota; a
// quota rejection triggers the client's cooldown policy instead of retries.
type ReviewBackend struct {
	client *genai.Client
	model  string
	maxOut int32
}

// ReviewOpts configures the review backend.
type ReviewOpts struct {
	APIKey string
	Model  string // default "gemini-2.5-pro"
	MaxOut int32  // output token cap (default 8192)
}

// NewReviewBackend creates the Gemini-backed review service.
func NewReviewBackend(ctx context.Context, opts ReviewOpts) (*ReviewBackend, error) {
	if opts.APIKey == "" {
		return nil, &protocol.CredentialError{Service: string(ReviewService), EnvVar: "GEMINI_API_KEY"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, &BackendError{Service: ReviewService, Kind: KindPermanent, Err: err}
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-pro"
	}
	maxOut := opts.MaxOut
	if maxOut == 0 {
		maxOut = 8192
	}
	return &ReviewBackend{client: client, model: model, maxOut: maxOut}, nil
}

// Service implements Backend.
func (b *ReviewBackend) Service() Service { return ReviewService }

// Model implements Backend.
func (b *ReviewBackend) Model() string { return b.model }

// Invoke implements Backend.
func (b *ReviewBackend) Invoke(ctx context.Context, req Request) (Response, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(req), genai.RoleUser),
	}
	result, err := b.client.Models.GenerateContent(ctx, b.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction(ReviewService), genai.RoleUser),
		MaxOutputTokens:   b.maxOut,
		Temperature:       genai.Ptr[float32](0.2),
	})
	if err != nil {
		return Response{}, b.classify(err)
	}

	text := result.Text()
	if text == "" {
		return Response{}, &BackendError{
			Service: ReviewService,
			Kind:    KindTransient,
			Err:     errors.New("empty candidate text in response"),
		}
	}

	resp := Response{Text: text}
	if um := result.UsageMetadata; um != nil {
		resp.Tokens = protocol.TokenCounts{
			Input:  int(um.PromptTokenCount),
			Output: int(um.CandidatesTokenCount),
			Total:  int(um.TotalTokenCount),
		}
	}
	return resp, nil
}

// classify maps Gemini API errors onto the retry taxonomy. On the free tier
// a 429 means the daily quota is spent, so it maps to quota (cooldown), not
// transient. 401/403/400 are permanent; 5xx and transport errors transient.
func (b *ReviewBackend) classify(err error) error {
	kind := KindTransient

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			kind = KindQuota
		case apiErr.Code == 401 || apiErr.Code == 403:
			kind = KindPermanent
		case apiErr.Code == 400 || apiErr.Code == 404:
			kind = KindPermanent
		}
	}

	return &BackendError{Service: ReviewService, Kind: kind, Err: err}
}
