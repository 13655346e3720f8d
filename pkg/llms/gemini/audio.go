package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"google.golang.org/genai"
)

const baseTranscriptionPrompt = "Transcribe this therapy session audio accurately. Return only the transcript text."

var audioMIMETypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
}

type audioTranscriptionGenerator struct {
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
	return &audioTranscriptionGenerator{filePath: filePath, opts: opts}, nil
}

func (g *audioTranscriptionGenerator) Generate(ctx context.Context) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveAudioTranscriptionModelName(g.opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	audioBytes, err := os.ReadFile(g.filePath)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	mimeType, err := resolveAudioMIMEType(g.filePath)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	prompt, err := buildAudioTranscriptionPrompt(g.opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	client, err := newAPIClient(ctx, model.GeneratorConfig{URL: g.opts.URL, AuthToken: g.opts.AuthToken})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	log.Infof("audio_transcription_request model=%q mime=%q bytes=%d", modelName, mimeType, len(audioBytes))
	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromText(prompt),
				genai.NewPartFromBytes(audioBytes, mimeType),
			},
			genai.RoleUser,
		),
	}

	response, err := client.Models.GenerateContent(ctx, modelName, contents, &genai.GenerateContentConfig{})
	if err != nil {
		err = classifyError(err)
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyGenerateMetadata(meta, response)

	transcript := strings.TrimSpace(response.Text())
	if transcript == "" {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return transcript, meta, nil
}

func resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		return modelName
	}
	return defaultGenerationModelName
}

func buildAudioTranscriptionPrompt(opts model.AudioOptions) (string, error) {
	if customPrompt := strings.TrimSpace(opts.Prompt); customPrompt != "" {
		return customPrompt, nil
	}

	missed, err := buildCommonMissedWordsPrompt(opts.Keywords)
	if err != nil || missed == "" {
		return baseTranscriptionPrompt, err
	}
	return baseTranscriptionPrompt + " " + missed, nil
}

func buildCommonMissedWordsPrompt(keywords []model.AudioKeyword) (string, error) {
	normalized := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		var mistypes []string
		for _, candidate := range keyword.CommonMistypes {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				mistypes = append(mistypes, candidate)
			}
		}
		if word == "" && len(mistypes) == 0 {
			continue
		}
		normalized = append(normalized, model.AudioKeyword{
			Word:           word,
			CommonMistypes: mistypes,
			Definition:     strings.TrimSpace(keyword.Definition),
		})
	}
	if len(normalized) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return "Common missed words: " + string(payload), nil
}

func resolveAudioMIMEType(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filePath)))
	if ext == "" {
		return "", utils.WrapIfNotNil(errors.New("audio file extension is required to determine mime type"))
	}
	if mimeType, ok := audioMIMETypes[ext]; ok {
		return mimeType, nil
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "", utils.WrapIfNotNil(errors.New("unsupported audio file extension: " + ext))
	}
	// Strip parameters such as "; charset=utf-8".
	mimeType = strings.TrimSpace(strings.Split(mimeType, ";")[0])
	if !strings.HasPrefix(mimeType, "audio/") {
		return "", utils.WrapIfNotNil(errors.New("unsupported audio mime type: " + mimeType))
	}
	return mimeType, nil
}
