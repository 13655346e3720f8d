package model

import "context"

// NewAudioTranscriptionGeneratorFunc is the factory each transcription provider exposes.
type NewAudioTranscriptionGeneratorFunc func(filePath string, opts AudioOptions) (AudioTranscriptionGenerator, error)

type AudioTranscriptionGenerator interface {
	Generate(ctx context.Context) (string, GenerationMetadata, error)
}

type AudioKeyword struct {
	Word           string   `json:"word,omitempty"`
	CommonMistypes []string `json:"common_mistypes,omitempty"`
	Definition     string   `json:"definition,omitempty"`
}

type AudioOptions struct {
	IgnoreInvalidGeneratorOptions bool
	URL                           string
	AuthToken                     string
	Model                         string
	// Prompt optionally overrides the provider's default audio prompt behavior.
	// When Prompt is set, keyword hints are not appended.
	Prompt string
	// Keywords provides domain terms that may be missed in transcription.
	Keywords []AudioKeyword
}
