package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"github.com/oklog/ulid/v2"
)

// GenerationRequest is one format's unit of work. Requests are built in full
// before any service call is made.
type GenerationRequest struct {
	ID          string        `json:"id"`
	SessionText string        `json:"-"`
	Format      NoteFormat    `json:"format"`
	Role        ClinicianRole `json:"role"`
	Tier        ModelTier     `json:"tier"`
}

// BuildRequests validates the user's selections and returns one request per
// distinct format. Empty session text is rejected here so that no prompt is
// ever built for it.
func BuildRequests(sessionText string, formats []NoteFormat, role ClinicianRole, tier ModelTier) ([]GenerationRequest, error) {
	if strings.TrimSpace(sessionText) == "" {
		return nil, ErrEmptySessionText
	}
	if len(formats) == 0 {
		return nil, ErrNoFormats
	}
	if strings.TrimSpace(string(role)) == "" {
		return nil, ErrEmptyRole
	}
	if _, err := ParseModelTier(string(tier)); err != nil {
		return nil, err
	}

	seen := make(map[NoteFormat]struct{}, len(formats))
	requests := make([]GenerationRequest, 0, len(formats))
	for _, format := range formats {
		if !format.Valid() {
			return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
		}
		if _, dup := seen[format]; dup {
			continue
		}
		seen[format] = struct{}{}
		requests = append(requests, GenerationRequest{
			ID:          ulid.Make().String(),
			SessionText: sessionText,
			Format:      format,
			Role:        role,
			Tier:        tier,
		})
	}
	return requests, nil
}

type PipelineOption func(*Pipeline)

// WithRequestTimeout bounds a whole Run. Calls still pending when it expires
// fail with a timeout.
func WithRequestTimeout(timeout time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.timeout = timeout
	}
}

type Pipeline struct {
	generator *Generator
	codes     *catalog.Catalog
	terms     catalog.Terms
	timeout   time.Duration
}

func NewPipeline(generator *Generator, codes *catalog.Catalog, terms catalog.Terms, opts ...PipelineOption) (*Pipeline, error) {
	if generator == nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w: generator is required", ErrConfiguration))
	}
	if codes == nil || codes.Len() == 0 {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w: billing code catalog is required", ErrConfiguration))
	}

	p := &Pipeline{
		generator: generator,
		codes:     codes,
		terms:     terms,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.codes
}

// Generate builds the requests for sessionText and runs them.
func (p *Pipeline) Generate(
	ctx context.Context,
	sessionText string,
	formats []NoteFormat,
	role ClinicianRole,
	tier ModelTier,
) ([]NoteResult, error) {
	requests, err := BuildRequests(sessionText, formats, role, tier)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if _, ok := p.generator.ModelFor(tier); !ok {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w %q: no model configured", ErrUnknownTier, tier))
	}
	return p.Run(ctx, requests), nil
}

// Run executes every request concurrently and returns one result per request
// in request order. A failed request never affects its siblings.
func (p *Pipeline) Run(ctx context.Context, requests []GenerationRequest) []NoteResult {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := logging.NewLogger(ctx)
	log.Infof("pipeline_run requests=%d timeout=%s", len(requests), p.timeout)

	results := make([]NoteResult, len(requests))
	var wg sync.WaitGroup
	for i, request := range requests {
		wg.Add(1)
		go func(i int, request GenerationRequest) {
			defer wg.Done()
			results[i] = p.runOne(ctx, request)
		}(i, request)
	}
	wg.Wait()

	return results
}

func (p *Pipeline) runOne(ctx context.Context, request GenerationRequest) (result NoteResult) {
	ctx = logging.WithFields(ctx, logging.Fields{"request_id": request.ID, "format": string(request.Format)})
	log := logging.NewLogger(ctx)
	result = NoteResult{
		RequestID: request.ID,
		Format:    request.Format,
		Status:    StatusPending,
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			utils.PrintStack(fmt.Sprintf("request=%s format=%s", request.ID, request.Format), log)
			cause := fmt.Errorf("panic during generation: %v", recovered)
			result.Status = StatusFailed
			result.Err = &GenerationError{Kind: model.ErrorKindService, Message: cause.Error(), Err: cause}
		}
	}()

	prompt := BuildPrompt(request.SessionText, request.Format, request.Role, p.codes)
	text, meta, err := p.generator.Generate(ctx, prompt, request.Tier)
	if err != nil {
		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			genErr = newGenerationError(err, 0)
		}
		log.Warnf("note_failed request=%s format=%s kind=%s", request.ID, request.Format, genErr.Kind)
		result.Status = StatusFailed
		result.Err = genErr
		result.Metadata = meta
		return result
	}

	processed := Process(text, p.terms, p.codes)
	processed.RequestID = request.ID
	processed.Format = request.Format
	processed.Metadata = meta

	log.Infof(
		"note_processed request=%s format=%s flagged=%d suggested=%v",
		request.ID,
		request.Format,
		len(processed.FlaggedTerms),
		processed.SuggestedCode != nil,
	)
	return processed
}
