package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

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
	modelName := resolveModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	contexts, err := g.ResolvePromptContexts(ctx)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	system, messages := buildMessages(g.prompt, contexts)

	client, err := newClient(ctx, g.cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	log.Infof(
		"converse_request model=%q context_count=%d temperature=%v max_tokens=%v prompt_chars=%d",
		modelName,
		len(contexts),
		g.cfg.Temperature,
		g.cfg.MaxTokens,
		len(g.prompt),
	)

	output, err := client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelName),
		Messages:        messages,
		System:          system,
		InferenceConfig: buildInferenceConfig(g.cfg),
	})
	if err != nil {
		err = classifyError(err)
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyBedrockMetadata(meta, output)

	text, err := extractText(output)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

func buildMessages(prompt string, contexts []*model.PromptContext) ([]bedrocktypes.SystemContentBlock, []bedrocktypes.Message) {
	system := make([]bedrocktypes.SystemContentBlock, 0)
	messages := make([]bedrocktypes.Message, 0, len(contexts)+1)

	for _, contextItem := range contexts {
		switch contextItem.MessageType {
		case model.ContextMessageTypeSystem:
			system = append(system, &bedrocktypes.SystemContentBlockMemberText{Value: contextItem.Content})
		case model.ContextMessageTypeAssistant:
			messages = append(messages, textMessage(bedrocktypes.ConversationRoleAssistant, contextItem.Content))
		default:
			messages = append(messages, textMessage(bedrocktypes.ConversationRoleUser, contextItem.Content))
		}
	}
	messages = append(messages, textMessage(bedrocktypes.ConversationRoleUser, prompt))

	return system, messages
}

func textMessage(role bedrocktypes.ConversationRole, text string) bedrocktypes.Message {
	return bedrocktypes.Message{
		Role:    role,
		Content: []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: text}},
	}
}

func buildInferenceConfig(cfg model.GeneratorConfig) *bedrocktypes.InferenceConfiguration {
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}

	inference := &bedrocktypes.InferenceConfiguration{}
	if cfg.MaxTokens != nil {
		inference.MaxTokens = aws.Int32(int32(*cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		inference.Temperature = aws.Float32(float32(*cfg.Temperature))
	}
	return inference
}

// extractText returns the joined text blocks of a Converse reply. Guardrail
// and content-filter stops are reported as content-policy failures.
func extractText(output *bedrockruntime.ConverseOutput) (string, error) {
	if output == nil {
		return "", errors.New("converse output is nil")
	}

	switch output.StopReason {
	case bedrocktypes.StopReasonGuardrailIntervened, bedrocktypes.StopReasonContentFiltered:
		return "", model.NewProviderError(providerName, model.ErrorKindContentPolicy, 0,
			fmt.Errorf("generation stopped: %s", output.StopReason))
	}

	messageOutput, ok := output.Output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok || messageOutput == nil {
		return "", errors.New("converse output is not a message")
	}

	parts := make([]string, 0, len(messageOutput.Value.Content))
	for _, block := range messageOutput.Value.Content {
		textBlock, ok := block.(*bedrocktypes.ContentBlockMemberText)
		if !ok || textBlock == nil {
			continue
		}
		if value := strings.TrimSpace(textBlock.Value); value != "" {
			parts = append(parts, value)
		}
	}

	text := strings.Join(parts, "\n")
	if text == "" {
		return "", errors.New("response output is empty")
	}
	return text, nil
}
