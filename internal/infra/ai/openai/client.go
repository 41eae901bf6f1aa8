package openai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/medreport-ai/internal/domain/ai"
)

const maxTokens = 4096

// Client adapts the OpenAI chat API to the ai.Generator port. Provider
// failures are mapped to *ai.ProviderError so callers never see vendor types.
type Client struct {
	api          *openai.Client
	fastModel    string
	capableModel string
}

func NewClient(apiKey, fastModel, capableModel string) *Client {
	if fastModel == "" {
		fastModel = "gpt-4o-mini"
	}
	if capableModel == "" {
		capableModel = "gpt-4o"
	}
	return &Client{
		api:          openai.NewClient(apiKey),
		fastModel:    fastModel,
		capableModel: capableModel,
	}
}

func (c *Client) model(tier ai.Tier) string {
	if tier == ai.TierCapable {
		return c.capableModel
	}
	return c.fastModel
}

// Generate performs one chat completion. With attachments present the call
// is multimodal: the prompt and each base64 image ride in a single user
// message, attachment order preserved.
func (c *Client) Generate(ctx context.Context, tier ai.Tier, prompt string, attachments []ai.Attachment) (string, error) {
	model := c.model(tier)

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(attachments) == 0 {
		msg.Content = prompt
	} else {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
		}
		for _, att := range attachments {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", att.ContentType, att.Data),
				},
			})
		}
		msg.MultiContent = parts
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: []openai.ChatCompletionMessage{msg},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", translateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var retryHintPattern = regexp.MustCompile(`(?i)(?:retry.?delay"?\s*[:=]\s*"?|try again in\s*)(\d+(?:\.\d+)?(?:ms|s|m))`)

// translateError converts vendor errors into the neutral ProviderError.
// Non-API failures (network, decode) pass through untouched and are treated
// as fatal upstream.
func translateError(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	pe := &ai.ProviderError{
		StatusCode: apiErr.HTTPStatusCode,
		Message:    apiErr.Message,
		Err:        err,
	}
	if apiErr.HTTPStatusCode == 429 {
		pe.RetryAfter = parseRetryHint(apiErr.Message)
		pe.DailyQuota = mentionsDailyQuota(apiErr)
	}
	return pe
}

// parseRetryHint extracts a provider-suggested wait such as "31s" from the
// error text. Zero when absent or unparseable.
func parseRetryHint(message string) time.Duration {
	m := retryHintPattern.FindStringSubmatch(message)
	if m == nil {
		return 0
	}
	d, err := time.ParseDuration(m[1])
	if err != nil {
		return 0
	}
	return d
}

// mentionsDailyQuota is a best-effort hint: quota violations referencing a
// day-scale window select the daily-exhaustion message. Vendor strings are
// not guaranteed to carry these markers.
func mentionsDailyQuota(apiErr *openai.APIError) bool {
	blob := strings.ToLower(fmt.Sprintf("%s %v %s", apiErr.Type, apiErr.Code, apiErr.Message))
	return strings.Contains(blob, "daily") || strings.Contains(blob, "day")
}
