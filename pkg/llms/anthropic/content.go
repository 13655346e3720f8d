package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
)

type textGenerator struct {
	model.PromptContextSet

	client *apiClient
	prompt string
	cfg    model.GeneratorConfig
}

func NewStringContentGenerator(prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[string], error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, utils.WrapIfNotNil(errors.New("prompt is required"))
	}

	cfg := model.ResolveGeneratorOpts(opts...)
	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return &textGenerator{
		client: client,
		prompt: prompt,
		cfg:    cfg,
	}, nil
}

func (g *textGenerator) Generate(ctx context.Context) (string, model.GenerationMetadata, error) {
	start := time.Now()
	log := logging.NewLogger(ctx)

	cfg, err := normalizeGeneratorOptionsForProvider(g.cfg, log)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", nil, utils.WrapIfNotNil(err)
	}

	modelName := resolveModelName(cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	system, messages, contextCount, err := g.messagesWithContext(ctx)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	log.Infof(
		"messages_request model=%q context_count=%d temperature=%v max_tokens=%d prompt_chars=%d",
		modelName,
		contextCount,
		cfg.Temperature,
		resolveMaxTokens(cfg),
		len(g.prompt),
	)

	response, err := g.client.createMessage(ctx, anthropicMessageRequest{
		Model:       modelName,
		MaxTokens:   resolveMaxTokens(cfg),
		Temperature: cfg.Temperature,
		System:      system,
		Messages:    messages,
	})
	applyAnthropicMetadata(meta, response)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	text := strings.TrimSpace(extractTextFromContentBlocks(response.Content))
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

func (g *textGenerator) messagesWithContext(ctx context.Context) (string, []anthropicMessage, int, error) {
	contexts, err := g.ResolvePromptContexts(ctx)
	if err != nil {
		return "", nil, 0, utils.WrapIfNotNil(err)
	}
	system, messages := buildMessages(g.prompt, contexts)
	return system, messages, len(contexts), nil
}

// buildMessages joins system contexts into the top-level system field; the
// Messages API has no system role inside the conversation.
func buildMessages(prompt string, contexts []*model.PromptContext) (string, []anthropicMessage) {
	systemParts := make([]string, 0)
	messages := make([]anthropicMessage, 0, len(contexts)+1)

	for _, contextItem := range contexts {
		switch contextItem.MessageType {
		case model.ContextMessageTypeSystem:
			systemParts = append(systemParts, contextItem.Content)
		case model.ContextMessageTypeAssistant:
			messages = append(messages, makeTextMessage("assistant", contextItem.Content))
		default:
			messages = append(messages, makeTextMessage("user", contextItem.Content))
		}
	}
	messages = append(messages, makeTextMessage("user", prompt))

	return strings.Join(systemParts, "\n\n"), messages
}

func makeTextMessage(role string, content string) anthropicMessage {
	return anthropicMessage{
		Role:    role,
		Content: []anthropicContentBlock{{Type: "text", Text: content}},
	}
}

func extractTextFromContentBlocks(content []anthropicContentBlock) string {
	parts := make([]string, 0, len(content))
	for _, block := range content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
