package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"google.golang.org/genai"
)

const thinkingUnsupportedMessage = "Thinking level is not supported for this model"

type textGenerator struct {
	model.PromptContextSet

	prompt string
	cfg    model.GeneratorConfig
}

func NewStringContentGenerator(prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[string], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}

	return &textGenerator{
		prompt: prompt,
		cfg:    model.ResolveGeneratorOpts(opts...),
	}, nil
}

func (g *textGenerator) Generate(ctx context.Context) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveGenerationModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	contexts, err := g.ResolvePromptContexts(ctx)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	systemInstruction, contents := buildContents(g.prompt, contexts)
	config := buildGenerateContentConfig(g.cfg, systemInstruction)

	client, err := newAPIClient(ctx, g.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	log.Infof(
		"generate_content_request model=%q context_count=%d temperature=%v max_tokens=%v prompt_chars=%d",
		modelName,
		len(contexts),
		g.cfg.Temperature,
		g.cfg.MaxTokens,
		len(g.prompt),
	)

	response, err := generateWithThinkingFallback(ctx, client, modelName, contents, config)
	if err != nil {
		err = classifyError(err)
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyGenerateMetadata(meta, response)

	if err = checkBlocked(response); err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		log.Errorf("error: %v", errEmptyResponse)
		return "", meta, utils.WrapIfNotNil(errEmptyResponse)
	}
	return text, meta, nil
}

// buildContents folds system contexts into a single system instruction and
// keeps the remaining contexts as conversation turns ahead of the prompt.
func buildContents(prompt string, contexts []*model.PromptContext) (*genai.Content, []*genai.Content) {
	systemParts := make([]string, 0)
	contents := make([]*genai.Content, 0, len(contexts)+1)

	for _, contextItem := range contexts {
		switch contextItem.MessageType {
		case model.ContextMessageTypeSystem:
			systemParts = append(systemParts, contextItem.Content)
		case model.ContextMessageTypeAssistant:
			contents = append(contents, genai.NewContentFromText(contextItem.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(contextItem.Content, genai.RoleUser))
		}
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	if len(systemParts) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser), contents
}

func buildGenerateContentConfig(cfg model.GeneratorConfig, systemInstruction *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if systemInstruction != nil {
		config.SystemInstruction = systemInstruction
	}
	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		config.Temperature = &temp
	}
	if cfg.MaxTokens != nil {
		config.MaxOutputTokens = int32(*cfg.MaxTokens)
	}
	if cfg.ReasoningLevel != nil {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingLevel: mapReasoningLevel(*cfg.ReasoningLevel),
		}
	}
	return config
}

func mapReasoningLevel(level model.ReasoningLevel) genai.ThinkingLevel {
	switch level {
	case model.ReasoningLevelNone:
		return genai.ThinkingLevelMinimal
	case model.ReasoningLevelLow:
		return genai.ThinkingLevelLow
	case model.ReasoningLevelHigh:
		return genai.ThinkingLevelHigh
	default:
		return genai.ThinkingLevelMedium
	}
}

// generateWithThinkingFallback retries once without a thinking config when
// the model rejects it.
func generateWithThinkingFallback(
	ctx context.Context,
	client *genai.Client,
	modelName string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	response, err := client.Models.GenerateContent(ctx, modelName, contents, config)
	if err == nil {
		return response, nil
	}
	if config == nil || config.ThinkingConfig == nil || !utils.ContainsErrorSubstring(err, thinkingUnsupportedMessage) {
		return nil, err
	}

	logging.NewLogger(ctx).Warnf("thinking level unsupported for model %q; retrying without thinking config", modelName)

	fallback := *config
	fallback.ThinkingConfig = nil
	return client.Models.GenerateContent(ctx, modelName, contents, &fallback)
}
