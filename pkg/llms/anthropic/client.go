// Package anthropic implements text generation over the Anthropic Messages
// HTTP API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
)

const (
	providerName        = "anthropic"
	defaultModelName    = "claude-3-5-sonnet-latest"
	defaultBaseURL      = "https://api.anthropic.com"
	anthropicVersion    = "2023-06-01"
	defaultMaxTokens    = 1024
	defaultHTTPTimeout  = 90 * time.Second
	envAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	envAnthropicBaseURL = "ANTHROPIC_BASE_URL"
	stopReasonRefusal   = "refusal"
)

var ErrMissingAPIKey = errors.New("auth token is required (set WithAuthToken or ANTHROPIC_API_KEY)")

type apiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type anthropicUsage struct {
	InputTokens        int64 `json:"input_tokens"`
	OutputTokens       int64 `json:"output_tokens"`
	CacheReadInput     int64 `json:"cache_read_input_tokens"`
	CacheCreationInput int64 `json:"cache_creation_input_tokens"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicMessageRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessageResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      *anthropicUsage         `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a non-2xx response from the Messages API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API error (%d %s): %s", e.StatusCode, e.Type, e.Message)
}

func newAPIClient(cfg model.GeneratorConfig) (*apiClient, error) {
	apiKey := strings.TrimSpace(cfg.AuthToken)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(envAnthropicAPIKey))
	}
	if apiKey == "" {
		return nil, model.NewProviderError(providerName, model.ErrorKindAuth, 0, ErrMissingAPIKey)
	}

	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv(envAnthropicBaseURL))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &apiClient{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}, nil
}

func (c *apiClient) createMessage(ctx context.Context, request anthropicMessageRequest) (*anthropicMessageResponse, error) {
	requestBits, err := json.Marshal(request)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(requestBits))
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	httpRequest.Header.Set("content-type", "application/json")
	httpRequest.Header.Set("x-api-key", c.apiKey)
	httpRequest.Header.Set("anthropic-version", anthropicVersion)

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	defer httpResponse.Body.Close()

	responseBits, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		apiErr := parseAPIError(httpResponse.StatusCode, responseBits)
		kind := model.KindFromStatus(apiErr.StatusCode, apiErr.Type+" "+apiErr.Message)
		return nil, model.NewProviderError(providerName, kind, apiErr.StatusCode, apiErr)
	}

	response := anthropicMessageResponse{}
	if err = json.Unmarshal(responseBits, &response); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if response.StopReason == stopReasonRefusal {
		return &response, model.NewProviderError(providerName, model.ErrorKindContentPolicy, httpResponse.StatusCode,
			errors.New("model refused to generate the note"))
	}
	return &response, nil
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}

	parsed := anthropicErrorResponse{}
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Type = parsed.Error.Type
		if message := strings.TrimSpace(parsed.Error.Message); message != "" {
			apiErr.Message = message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = "unknown anthropic error"
	}
	return apiErr
}

func resolveModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		if name := strings.TrimSpace(*cfg.Model); name != "" {
			return name
		}
	}
	return defaultModelName
}

func resolveMaxTokens(cfg model.GeneratorConfig) int {
	if cfg.MaxTokens != nil && *cfg.MaxTokens > 0 {
		return *cfg.MaxTokens
	}
	return defaultMaxTokens
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

func applyAnthropicMetadata(meta model.GenerationMetadata, response *anthropicMessageResponse) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	if usage := response.Usage; usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.FormatInt(usage.InputTokens, 10)
		meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(usage.OutputTokens, 10)
		meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(usage.InputTokens+usage.OutputTokens, 10)
		meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(usage.CacheReadInput+usage.CacheCreationInput, 10)
	}
	if strings.TrimSpace(response.ID) != "" {
		meta[model.MetadataKeyResponseID] = response.ID
	}
	if strings.TrimSpace(response.StopReason) != "" {
		meta[model.MetadataKeyResponseStatus] = response.StopReason
	}
	if strings.TrimSpace(response.Model) != "" {
		meta[model.MetadataKeyModel] = response.Model
	}
}

func normalizeGeneratorOptionsForProvider(cfg model.GeneratorConfig, log logging.Logger) (model.GeneratorConfig, error) {
	if cfg.ReasoningLevel == nil {
		return cfg, nil
	}
	if !cfg.IgnoreInvalidGeneratorOptions {
		return cfg, utils.WrapIfNotNil(errors.New("reasoning level is not supported for anthropic provider"))
	}
	if log != nil {
		log.Warnf("ignoring reasoning level for anthropic provider")
	}
	cfg.ReasoningLevel = nil
	return cfg, nil
}
