package openai

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
)

const defaultAudioTranscriptionModelName = "whisper-1"

var errEmptyTranscript = errors.New("transcription response is empty")

type audioTranscriptionGenerator struct {
	client   *client
	filePath string
	opts     model.AudioOptions
}

func NewAudioTranscriptionGenerator(
	filePath string,
	opts model.AudioOptions,
) (model.AudioTranscriptionGenerator, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, utils.WrapIfNotNil(errors.New("file path is required"))
	}

	c, err := newClient(model.GeneratorConfig{
		IgnoreInvalidGeneratorOptions: opts.IgnoreInvalidGeneratorOptions,
		URL:                           opts.URL,
		AuthToken:                     opts.AuthToken,
	})
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return &audioTranscriptionGenerator{
		client:   c,
		filePath: filePath,
		opts:     opts,
	}, nil
}

func (g *audioTranscriptionGenerator) Generate(ctx context.Context) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveAudioTranscriptionModelName(g.opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	log.Infof("audio_transcription_request model=%q keywords=%d", modelName, len(g.opts.Keywords))

	transcript, response, err := g.client.runAudioTranscription(ctx, g.filePath, g.opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	applyAudioTranscriptionMetadata(meta, response)
	return transcript, meta, nil
}

func (c *client) runAudioTranscription(
	ctx context.Context,
	filePath string,
	opts model.AudioOptions,
) (string, *openai.AudioTranscriptionNewResponseUnion, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	defer func() {
		_ = file.Close()
	}()

	params := openai.AudioTranscriptionNewParams{
		File:           file,
		Model:          openai.AudioModel(resolveAudioTranscriptionModelName(opts)),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	prompt, err := buildAudioTranscriptionPrompt(opts)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	if prompt != "" {
		params.Prompt = param.NewOpt(prompt)
	}

	response, err := c.apiClient.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(classifyError(err))
	}
	if response == nil {
		return "", nil, utils.WrapIfNotNil(errors.New("audio transcriptions API returned nil response"))
	}

	transcript := strings.TrimSpace(response.Text)
	if transcript == "" {
		return "", response, utils.WrapIfNotNil(errEmptyTranscript)
	}
	return transcript, response, nil
}

// buildAudioTranscriptionPrompt prefers an explicit prompt and otherwise lists
// the domain keywords the model tends to mishear.
func buildAudioTranscriptionPrompt(opts model.AudioOptions) (string, error) {
	if customPrompt := strings.TrimSpace(opts.Prompt); customPrompt != "" {
		return customPrompt, nil
	}

	keywords := normalizeAudioKeywords(opts.Keywords)
	if len(keywords) == 0 {
		return "", nil
	}

	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return "", err
	}
	return "Common missed words: " + string(keywordsJSON), nil
}

func normalizeAudioKeywords(keywords []model.AudioKeyword) []model.AudioKeyword {
	normalized := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		definition := strings.TrimSpace(keyword.Definition)
		var mistypes []string
		for _, candidate := range keyword.CommonMistypes {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				mistypes = append(mistypes, candidate)
			}
		}

		if word == "" && definition == "" && len(mistypes) == 0 {
			continue
		}
		normalized = append(normalized, model.AudioKeyword{
			Word:           word,
			CommonMistypes: mistypes,
			Definition:     definition,
		})
	}
	return normalized
}

func resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		return modelName
	}
	return defaultAudioTranscriptionModelName
}

func applyAudioTranscriptionMetadata(
	meta model.GenerationMetadata,
	response *openai.AudioTranscriptionNewResponseUnion,
) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyAPICalls] = "1"
	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.InputTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.Usage.OutputTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
}
