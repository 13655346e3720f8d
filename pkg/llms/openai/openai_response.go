package openai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

type textGenerator struct {
	model.PromptContextSet

	client *client
	prompt string
	cfg    model.GeneratorConfig
}

func NewStringContentGenerator(prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[string], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}

	cfg := model.ResolveGeneratorOpts(opts...)
	c, err := newClient(cfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return &textGenerator{client: c, prompt: prompt, cfg: cfg}, nil
}

func (g *textGenerator) Generate(ctx context.Context) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	inputItems, contextCount, err := g.inputItemsWithContext(ctx)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	params, err := buildResponseParams(modelName, g.cfg, inputItems, log)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	log.Infof(
		"responses_request model=%q context_count=%d input_items=%d temperature=%v max_tokens=%v prompt_chars=%d",
		modelName,
		contextCount,
		len(inputItems),
		g.cfg.Temperature,
		g.cfg.MaxTokens,
		len(g.prompt),
	)

	response, err := g.client.apiClient.Responses.New(ctx, params)
	if err != nil {
		err = classifyError(err)
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	if response == nil {
		err = errors.New("responses API returned nil response")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyResponseMetadata(meta, response)

	return response.OutputText(), meta, nil
}

func (g *textGenerator) inputItemsWithContext(ctx context.Context) (responses.ResponseInputParam, int, error) {
	contexts, err := g.ResolvePromptContexts(ctx)
	if err != nil {
		return nil, 0, utils.WrapIfNotNil(err)
	}
	return buildInputItems(g.prompt, contexts), len(contexts), nil
}

func buildInputItems(prompt string, contexts []*model.PromptContext) responses.ResponseInputParam {
	items := make(responses.ResponseInputParam, 0, len(contexts)+1)
	for _, contextItem := range contexts {
		items = append(items, responses.ResponseInputItemParamOfMessage(
			contextItem.Content,
			mapContextMessageRole(contextItem.MessageType),
		))
	}
	return append(items, responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser))
}

func buildResponseParams(
	modelName string,
	cfg model.GeneratorConfig,
	inputItems responses.ResponseInputParam,
	log logging.Logger,
) (responses.ResponseNewParams, error) {
	cfg, err := normalizeGeneratorOptionsForModel(modelName, cfg, log)
	if err != nil {
		return responses.ResponseNewParams{}, utils.WrapIfNotNil(err)
	}

	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
		Model: shared.ResponsesModel(modelName),
	}
	if cfg.Temperature != nil {
		params.Temperature = openai.Float(*cfg.Temperature)
	}
	if cfg.MaxTokens != nil {
		params.MaxOutputTokens = openai.Int(int64(*cfg.MaxTokens))
	}
	if cfg.ReasoningLevel != nil {
		params.Reasoning = shared.ReasoningParam{
			Effort: mapReasoningLevel(*cfg.ReasoningLevel),
		}
	}
	return params, nil
}

func mapContextMessageRole(messageType model.ContextMessageType) responses.EasyInputMessageRole {
	switch messageType {
	case model.ContextMessageTypeSystem:
		return responses.EasyInputMessageRoleSystem
	case model.ContextMessageTypeAssistant:
		return responses.EasyInputMessageRoleAssistant
	default:
		return responses.EasyInputMessageRoleUser
	}
}

// normalizeGeneratorOptionsForModel drops or rejects options the target model
// does not accept, depending on IgnoreInvalidGeneratorOptions.
func normalizeGeneratorOptionsForModel(
	modelName string,
	cfg model.GeneratorConfig,
	log logging.Logger,
) (model.GeneratorConfig, error) {
	reasoningModel := isReasoningModel(modelName)

	if cfg.Temperature != nil && reasoningModel {
		if !cfg.IgnoreInvalidGeneratorOptions {
			return cfg, fmt.Errorf("temperature is not supported for reasoning model %q", modelName)
		}
		if log != nil {
			log.Warnf("ignoring temperature for reasoning model %q", modelName)
		}
		cfg.Temperature = nil
	}

	if cfg.ReasoningLevel != nil && !reasoningModel {
		if !cfg.IgnoreInvalidGeneratorOptions {
			return cfg, fmt.Errorf("reasoning effort is not supported for non-reasoning model %q", modelName)
		}
		if log != nil {
			log.Warnf("ignoring reasoning effort for non-reasoning model %q", modelName)
		}
		cfg.ReasoningLevel = nil
	}

	return cfg, nil
}

func isReasoningModel(modelName string) bool {
	name := strings.ToLower(strings.TrimSpace(modelName))
	return strings.HasPrefix(name, "o1") ||
		strings.HasPrefix(name, "o3") ||
		strings.HasPrefix(name, "o4") ||
		strings.HasPrefix(name, "gpt-5")
}

func resolveModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		if modelName := strings.TrimSpace(*cfg.Model); modelName != "" {
			return modelName
		}
	}
	return defaultModelName
}

func mapReasoningLevel(level model.ReasoningLevel) shared.ReasoningEffort {
	switch level {
	case model.ReasoningLevelNone:
		return shared.ReasoningEffortNone
	case model.ReasoningLevelLow:
		return shared.ReasoningEffortLow
	case model.ReasoningLevelHigh:
		return shared.ReasoningEffortHigh
	default:
		return shared.ReasoningEffortMedium
	}
}

func applyResponseMetadata(meta model.GenerationMetadata, response *responses.Response) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.InputTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.Usage.OutputTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
	meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(response.Usage.InputTokensDetails.CachedTokens, 10)
	meta[model.MetadataKeyReasoningTokens] = strconv.FormatInt(response.Usage.OutputTokensDetails.ReasoningTokens, 10)
	if response.ID != "" {
		meta[model.MetadataKeyResponseID] = response.ID
	}
	if response.Status != "" {
		meta[model.MetadataKeyResponseStatus] = string(response.Status)
	}
}
