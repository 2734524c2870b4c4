package service

import (
	"context"

	"github.com/bekovrafik/DreamColor/internal/model"
)

// TextGenerator produces chat replies and structured JSON from a text model.
// Implementations wrap a rejected credential with errs.ErrPermissionDenied.
type TextGenerator interface {
	// Generate continues history under systemPrompt and returns the reply text.
	Generate(ctx context.Context, systemPrompt string, history []model.ConversationTurn) (string, error)
	// GenerateJSON returns the raw JSON text of a structured response.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator renders an image from a prompt and an optional reference image.
// An empty result means the response carried no image part.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, ref *model.Image) ([]model.Image, error)
}

// SpeechSynthesizer converts text to PCM16 mono 24 kHz samples.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// CredentialProvider reports on and re-acquires the provider credential.
type CredentialProvider interface {
	HasValidCredential(ctx context.Context) bool
	// PromptForCredential blocks until a new credential is supplied or ctx ends.
	PromptForCredential(ctx context.Context) error
}
