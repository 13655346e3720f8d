package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a recorded session to text",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	log := logging.NewLogger(cmd.Context())

	cfg, err := loadConfig()
	if err != nil {
		log.Errorf("error: %v", err)
		os.Exit(exitConfigError)
	}
	transcriber, err := cfg.NewTranscriber()
	if err != nil {
		log.Errorf("error: %v", err)
		os.Exit(exitConfigError)
	}

	text, meta, err := transcriber.TranscribeFile(cmd.Context(), args[0])
	if err != nil {
		log.Errorf("error: %v", err)
		os.Exit(exitGenerateError)
	}
	log.Infof("transcription_done chars=%d latency_ms=%s", len(text), meta[model.MetadataKeyLatencyMs])

	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
