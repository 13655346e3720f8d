// Package gemini implements text generation and audio transcription over the
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"google.golang.org/genai"
)

const (
	providerName               = "gemini"
	defaultGenerationModelName = "gemini-2.5-flash"
	apiKeyEnv                  = "GEMINI_KEY"
)

var (
	ErrMissingAPIKey = errors.New("gemini api key is not configured")
	errEmptyResponse = errors.New("response output is empty")
)

func newAPIClient(ctx context.Context, cfg model.GeneratorConfig) (*genai.Client, error) {
	token := strings.TrimSpace(cfg.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(apiKeyEnv))
	}
	if token == "" {
		return nil, model.NewProviderError(providerName, model.ErrorKindAuth, 0, ErrMissingAPIKey)
	}

	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  token,
	}
	if baseURL := strings.TrimSpace(cfg.URL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return client, nil
}

// classifyError maps genai API errors onto model.ProviderError.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		detail := apiErr.Status + " " + apiErr.Message
		return model.NewProviderError(providerName, model.KindFromStatus(apiErr.Code, detail), apiErr.Code, err)
	}
	return err
}

// checkBlocked reports a prompt or candidate the service refused on safety
// grounds. Such responses arrive with a 200 status and no text.
func checkBlocked(response *genai.GenerateContentResponse) error {
	if response == nil {
		return nil
	}
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return model.NewProviderError(providerName, model.ErrorKindContentPolicy, 0,
			fmt.Errorf("prompt blocked: %s", response.PromptFeedback.BlockReason))
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		switch response.Candidates[0].FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
			return model.NewProviderError(providerName, model.ErrorKindContentPolicy, 0,
				fmt.Errorf("candidate blocked: %s", response.Candidates[0].FinishReason))
		}
	}
	return nil
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

func resolveGenerationModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		if name := strings.TrimSpace(*cfg.Model); name != "" {
			return name
		}
	}
	return defaultGenerationModelName
}

func applyGenerateMetadata(meta model.GenerationMetadata, response *genai.GenerateContentResponse) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	if usage := response.UsageMetadata; usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.Itoa(int(usage.PromptTokenCount))
		meta[model.MetadataKeyOutputTokens] = strconv.Itoa(int(usage.CandidatesTokenCount))
		meta[model.MetadataKeyTotalTokens] = strconv.Itoa(int(usage.TotalTokenCount))
		meta[model.MetadataKeyCachedInputTokens] = strconv.Itoa(int(usage.CachedContentTokenCount))
		meta[model.MetadataKeyReasoningTokens] = strconv.Itoa(int(usage.ThoughtsTokenCount))
	}
	if strings.TrimSpace(response.ResponseID) != "" {
		meta[model.MetadataKeyResponseID] = response.ResponseID
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		meta[model.MetadataKeyResponseStatus] = string(response.Candidates[0].FinishReason)
	}
}
