package ollama

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	ollamasdk "github.com/rozoomcool/go-ollama-sdk"
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
	return &textGenerator{
		client: newClient(cfg),
		prompt: prompt,
		cfg:    cfg,
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
	messages := buildMessages(g.prompt, contexts)

	log.Infof(
		"chat_request model=%q context_count=%d base_url=%q prompt_chars=%d",
		modelName,
		len(contexts),
		g.client.baseURL,
		len(g.prompt),
	)

	response, err := g.client.chat(ctx, chatRequest{
		ChatRequest: ollamasdk.ChatRequest{
			Model:    modelName,
			Messages: messages,
			Stream:   false,
		},
		Options: buildChatOptions(g.cfg),
	})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyOllamaMetadata(meta, response)

	text := strings.TrimSpace(response.Message.Content)
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

func buildMessages(prompt string, contexts []*model.PromptContext) []ollamasdk.ChatMessage {
	messages := make([]ollamasdk.ChatMessage, 0, len(contexts)+1)
	for _, contextItem := range contexts {
		role := "user"
		switch contextItem.MessageType {
		case model.ContextMessageTypeSystem:
			role = "system"
		case model.ContextMessageTypeAssistant:
			role = "assistant"
		}
		messages = append(messages, ollamasdk.ChatMessage{Role: role, Content: contextItem.Content})
	}

	return append(messages, ollamasdk.ChatMessage{Role: "user", Content: prompt})
}

func buildChatOptions(cfg model.GeneratorConfig) *chatOptions {
	if cfg.Temperature == nil && cfg.MaxTokens == nil {
		return nil
	}

	options := &chatOptions{}
	if cfg.Temperature != nil {
		temperature := *cfg.Temperature
		options.Temperature = &temperature
	}
	if cfg.MaxTokens != nil {
		numPredict := *cfg.MaxTokens
		options.NumPredict = &numPredict
	}
	return options
}
