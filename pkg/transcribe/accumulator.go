package transcribe

import (
	"context"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
)

// Accumulator collects a live dictation transcript chunk by chunk. It belongs
// to a single session and is safe for chunk callbacks arriving on other
// goroutines.
type Accumulator struct {
	mu       sync.Mutex
	chunks   []string
	failures []error
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append adds a transcribed chunk. Blank chunks are ignored.
func (a *Accumulator) Append(chunk string) {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = append(a.chunks, chunk)
}

// AppendFrom runs one transcription call and appends its text. A failed call
// leaves the accumulated text untouched and is recorded in Failures.
func (a *Accumulator) AppendFrom(ctx context.Context, transcribe func(ctx context.Context) (string, error)) error {
	text, err := transcribe(ctx)
	if err != nil {
		logging.NewLogger(ctx).Warnf("transcription_chunk_failed error=%v", err)
		a.mu.Lock()
		a.failures = append(a.failures, err)
		a.mu.Unlock()
		return err
	}

	a.Append(text)
	return nil
}

func (a *Accumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.chunks, " ")
}

func (a *Accumulator) Failures() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]error(nil), a.failures...)
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = nil
	a.failures = nil
}
