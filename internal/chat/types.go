package chat

import "errors"

const (
	// DefaultMaxTokens applies when a request leaves MaxTokens unset.
	DefaultMaxTokens = 1000
	// DefaultMaxTokensCeiling bounds any single request.
	DefaultMaxTokensCeiling = 1500
	// DefaultFallback is returned when the provider answers with no content.
	DefaultFallback = "ครูเพ็ญศรวยสมองแตกแล้วจ้า"
	// BatchFailureText marks an image whose analysis failed in a batch.
	BatchFailureText = "Analysis failed"
)

// ErrCompletion indicates the AI provider call failed.
var ErrCompletion = errors.New("completion failed")

// Request is one analysis request sent to the completion provider.
type Request struct {
	// Prompt is the user-turn text.
	Prompt string
	// System is an optional system instruction sent before the user turn.
	System string
	// ImageDataURI optionally attaches an image to the user turn.
	ImageDataURI string
	// MaxTokens caps the generated output; zero selects DefaultMaxTokens.
	MaxTokens int
	// Fallback replaces an empty response; empty selects DefaultFallback.
	Fallback string
}
