package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/config"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/notes"
)

var generateFlags struct {
	formats []string
	role    string
	tier    string
	audio   string
	code    string
	jsonOut bool
}

var generateCmd = &cobra.Command{
	Use:   "generate [session-file]",
	Short: "Generate notes from session text (file, stdin or --audio)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringSliceVar(&generateFlags.formats, "format", []string{string(notes.FormatSOAP)}, "Note formats to generate: SOAP, DAP")
	f.StringVar(&generateFlags.role, "role", string(notes.RoleTherapist), "Clinician role injected into the prompt")
	f.StringVar(&generateFlags.tier, "tier", string(notes.TierFast), "Model tier: fast or accurate")
	f.StringVar(&generateFlags.audio, "audio", "", "Transcribe this audio file and use the transcript as session text")
	f.StringVar(&generateFlags.code, "code", "", "Override the selected billing code for every note")
	f.BoolVar(&generateFlags.jsonOut, "json", false, "Write results as JSON")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.NewLogger(ctx)

	cfg, err := loadConfig()
	if err != nil {
		log.Errorf("error: %v", err)
		os.Exit(exitConfigError)
	}

	formats, err := parseFormats(generateFlags.formats)
	if err != nil {
		return err
	}
	role, err := notes.ParseClinicianRole(generateFlags.role)
	if err != nil {
		return err
	}
	tier, err := notes.ParseModelTier(generateFlags.tier)
	if err != nil {
		return err
	}

	pipeline, err := cfg.NewPipeline()
	if err != nil {
		log.Errorf("error: %v", err)
		os.Exit(exitConfigError)
	}

	sessionText, err := readSessionText(ctx, cfg, cmd.InOrStdin(), args)
	if err != nil {
		log.Errorf("error: %v", err)
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(exitConfigError)
		}
		os.Exit(exitGenerateError)
	}

	results, err := pipeline.Generate(ctx, sessionText, formats, role, tier)
	if err != nil {
		return err
	}

	for i := range results {
		results[i], err = finalizeSelection(results[i], pipeline, generateFlags.code)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if generateFlags.jsonOut {
		err = writeJSON(out, results)
	} else {
		err = writeText(out, results)
	}
	if err != nil {
		return err
	}

	os.Exit(exitCodeFor(results))
	return nil
}

func readSessionText(ctx context.Context, cfg *config.Config, stdin io.Reader, args []string) (string, error) {
	if generateFlags.audio != "" {
		transcriber, err := cfg.NewTranscriber()
		if err != nil {
			return "", err
		}
		text, _, err := transcriber.TranscribeFile(ctx, generateFlags.audio)
		return text, err
	}

	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseFormats(values []string) ([]notes.NoteFormat, error) {
	formats := make([]notes.NoteFormat, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			format, err := notes.ParseNoteFormat(part)
			if err != nil {
				return nil, err
			}
			formats = append(formats, format)
		}
	}
	return formats, nil
}

// finalizeSelection confirms the default selection, or applies the override
// code when one was given. Failed results are returned untouched.
func finalizeSelection(result notes.NoteResult, pipeline *notes.Pipeline, code string) (notes.NoteResult, error) {
	if result.Failed() {
		return result, nil
	}
	if code == "" {
		return result.Confirm()
	}
	overridden, err := result.Override(pipeline.Catalog(), code)
	if err != nil {
		return result, fmt.Errorf("--code: %w", err)
	}
	return overridden, nil
}

func exitCodeFor(results []notes.NoteResult) int {
	failed := 0
	for _, result := range results {
		if result.Failed() {
			failed++
		}
	}
	switch {
	case failed == 0:
		return exitSuccess
	case failed == len(results):
		return exitGenerateError
	default:
		return exitPartial
	}
}
