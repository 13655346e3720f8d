// Package transcribe turns recorded or dictated audio into session text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"github.com/spf13/afero"
)

var (
	ErrConfiguration = errors.New("transcription configuration error")
	ErrEmptyAudio    = errors.New("audio payload is empty")
)

const tempFilePattern = "clinical-notes-*"

type Option func(*Transcriber)

// WithFs replaces the filesystem used for temporary audio files. Providers
// read the file by path, so only an OS-backed Fs works against a live service.
func WithFs(fs afero.Fs) Option {
	return func(t *Transcriber) {
		t.fs = fs
	}
}

func WithTempDir(dir string) Option {
	return func(t *Transcriber) {
		t.tempDir = dir
	}
}

func WithAudioOptions(opts model.AudioOptions) Option {
	return func(t *Transcriber) {
		t.opts = opts
	}
}

type Transcriber struct {
	newGenerator model.NewAudioTranscriptionGeneratorFunc
	fs           afero.Fs
	tempDir      string
	opts         model.AudioOptions
}

func NewTranscriber(newGenerator model.NewAudioTranscriptionGeneratorFunc, opts ...Option) (*Transcriber, error) {
	if newGenerator == nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w: audio transcription factory is required", ErrConfiguration))
	}

	t := &Transcriber{
		newGenerator: newGenerator,
		fs:           afero.NewOsFs(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// TranscribeFile transcribes audio that already lives at path.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, model.GenerationMetadata, error) {
	generator, err := t.newGenerator(path, t.opts)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}

	text, meta, err := generator.Generate(ctx)
	if err != nil {
		return "", meta, utils.WrapIfNotNil(err)
	}
	return strings.TrimSpace(text), meta, nil
}

// TranscribeBytes writes audio to a temporary file, transcribes it and
// removes the file on every path out. name supplies the extension the service
// uses to detect the audio container.
func (t *Transcriber) TranscribeBytes(ctx context.Context, name string, audio []byte) (string, model.GenerationMetadata, error) {
	log := logging.NewLogger(ctx)
	if len(audio) == 0 {
		return "", nil, utils.WrapIfNotNil(ErrEmptyAudio)
	}

	file, err := afero.TempFile(t.fs, t.tempDir, tempFilePattern+filepath.Ext(name))
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	path := file.Name()
	defer func() {
		if removeErr := t.fs.Remove(path); removeErr != nil {
			log.Warnf("temp_audio_remove_failed path=%q error=%v", path, removeErr)
		}
	}()

	_, writeErr := file.Write(audio)
	closeErr := file.Close()
	if err = errors.Join(writeErr, closeErr); err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}

	log.Infof("audio_buffered bytes=%d ext=%q", len(audio), filepath.Ext(name))
	return t.TranscribeFile(ctx, path)
}
