// Package ollama implements text generation against a local Ollama server's
// /api/chat endpoint.
package ollama

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

	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	ollamasdk "github.com/rozoomcool/go-ollama-sdk"
)

const (
	providerName               = "ollama"
	defaultGenerationModelName = "llama3.1"
	defaultBaseURL             = "http://localhost:11434"
	requestTimeout             = 180 * time.Second
)

type client struct {
	httpClient *http.Client
	baseURL    string
}

func newClient(cfg model.GeneratorConfig) *client {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL"))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// chatRequest extends the SDK request with sampling options, which the SDK
// does not model.
type chatRequest struct {
	ollamasdk.ChatRequest
	Options *chatOptions `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	ollamasdk.ChatResponse
	Model           string `json:"model"`
	DoneReason      string `json:"done_reason,omitempty"`
	PromptEvalCount int64  `json:"prompt_eval_count,omitempty"`
	EvalCount       int64  `json:"eval_count,omitempty"`
	Error           string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *client) chat(ctx context.Context, request chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	defer httpResponse.Body.Close()

	rawBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	if httpResponse.StatusCode < http.StatusOK || httpResponse.StatusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(string(rawBody))
		var apiError errorResponse
		if unmarshalErr := json.Unmarshal(rawBody, &apiError); unmarshalErr == nil && strings.TrimSpace(apiError.Error) != "" {
			detail = strings.TrimSpace(apiError.Error)
		}
		return nil, model.NewProviderError(
			providerName,
			model.KindFromStatus(httpResponse.StatusCode, detail),
			httpResponse.StatusCode,
			fmt.Errorf("chat request failed: %s", detail),
		)
	}

	var response chatResponse
	if err := json.Unmarshal(rawBody, &response); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if errMsg := strings.TrimSpace(response.Error); errMsg != "" {
		return nil, model.NewProviderError(providerName, model.ErrorKindService, httpResponse.StatusCode, errors.New(errMsg))
	}

	return &response, nil
}

func resolveGenerationModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		if modelName := strings.TrimSpace(*cfg.Model); modelName != "" {
			return modelName
		}
	}
	return defaultGenerationModelName
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

func applyOllamaMetadata(meta model.GenerationMetadata, response *chatResponse) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.PromptEvalCount, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.EvalCount, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.PromptEvalCount+response.EvalCount, 10)
	if response.DoneReason != "" {
		meta[model.MetadataKeyResponseStatus] = response.DoneReason
	}
}
