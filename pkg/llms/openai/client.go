// Package openai implements text generation over the OpenAI Responses API and
// audio transcription over the Whisper transcription endpoint.
package openai

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	providerName     = "openai"
	defaultModelName = "gpt-4.1-mini"
	apiKeyEnv        = "OPENAI_API_KEY"
)

var ErrMissingAPIKey = errors.New("openai api key is not configured")

type client struct {
	apiClient openai.Client
}

// newClient disables SDK-level retries; repeating a request is the caller's
// decision through its retry policy.
func newClient(cfg model.GeneratorConfig) (*client, error) {
	token := strings.TrimSpace(cfg.AuthToken)
	if token == "" && strings.TrimSpace(os.Getenv(apiKeyEnv)) == "" {
		return nil, model.NewProviderError(providerName, model.ErrorKindAuth, 0, ErrMissingAPIKey)
	}

	requestOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.URL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.URL))
	}
	if token != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(token))
	}

	return &client{apiClient: openai.NewClient(requestOpts...)}, nil
}

// classifyError maps API failures onto model.ProviderError. Context and
// network errors pass through untouched so the caller can classify them.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		detail := apiErr.Code + " " + apiErr.Type + " " + apiErr.Message
		return model.NewProviderError(providerName, model.KindFromStatus(apiErr.StatusCode, detail), apiErr.StatusCode, err)
	}
	return err
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return model.GenerationMetadata{
		model.MetadataKeyProvider: providerName,
		model.MetadataKeyModel:    modelName,
	}
}

func setLatencyMetadata(meta model.GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}
