package ai

import "context"

// Tier selects the remote model variant for one attempt. Fast trades answer
// quality for throughput and rate-limit headroom.
type Tier string

const (
	TierFast    Tier = "fast"
	TierCapable Tier = "capable"
)

// Attachment is one binary image payload submitted alongside the text prompt
// in a multimodal call. Data is base64 encoded.
type Attachment struct {
	Data        string
	ContentType string
}

// Generator is the capability boundary to the remote generative service.
// Implementations return the generated text or a *ProviderError carrying an
// HTTP-like status code and optional retry hints.
type Generator interface {
	Generate(ctx context.Context, tier Tier, prompt string, attachments []Attachment) (string, error)
}
