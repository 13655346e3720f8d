package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
)

var ErrConfiguration = errors.New("configuration error")

var errEmptyResponse = errors.New("response output is empty")

// GenerationError is the typed failure of one format's generation call.
type GenerationError struct {
	Kind     model.ErrorKind `json:"kind"`
	Attempts int             `json:"attempts"`
	Message  string          `json:"message"`
	Err      error           `json:"-"`
}

func newGenerationError(err error, attempts int) *GenerationError {
	return &GenerationError{
		Kind:     model.ClassifyError(err),
		Attempts: attempts,
		Message:  err.Error(),
		Err:      err,
	}
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %s", e.Kind, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type generatorConfig struct {
	retry         utils.RetryOptions
	providerOpts  []model.GeneratorOption
	systemPersona string
}

type GeneratorOption func(*generatorConfig)

// WithRetryPolicy enables the retry hook. Only retryable error kinds
// (rate limit, transport, service) are repeated.
func WithRetryPolicy(opts utils.RetryOptions) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.retry = opts
	}
}

// WithProviderOptions forwards options such as auth token, base URL or max
// tokens to every content generator the Generator creates.
func WithProviderOptions(opts ...model.GeneratorOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.providerOpts = append(cfg.providerOpts, opts...)
	}
}

func WithSystemPersona(persona string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.systemPersona = persona
	}
}

// Generator sends built prompts to the text-generation service. Every call
// reaches the service; nothing is cached because the service is not
// deterministic.
type Generator struct {
	newGenerator model.NewStringContentGeneratorFunc
	models       map[ModelTier]string
	cfg          generatorConfig
}

func NewGenerator(
	newGenerator model.NewStringContentGeneratorFunc,
	models map[ModelTier]string,
	opts ...GeneratorOption,
) (*Generator, error) {
	if newGenerator == nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w: text generator factory is required", ErrConfiguration))
	}
	if len(models) == 0 {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w: at least one model tier is required", ErrConfiguration))
	}

	tiers := make(map[ModelTier]string, len(models))
	for tier, name := range models {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, utils.WrapIfNotNil(fmt.Errorf("%w: model for tier %q is empty", ErrConfiguration, tier))
		}
		tiers[tier] = name
	}

	cfg := generatorConfig{
		retry:         utils.RetryOptions{MaxAttempts: 1},
		systemPersona: SystemPersona,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.retry.Retryable == nil {
		cfg.retry.Retryable = func(err error) bool {
			return model.ClassifyError(err).Retryable()
		}
	}

	return &Generator{
		newGenerator: newGenerator,
		models:       tiers,
		cfg:          cfg,
	}, nil
}

// ModelFor returns the opaque model identifier configured for tier.
func (g *Generator) ModelFor(tier ModelTier) (string, bool) {
	name, ok := g.models[tier]
	return name, ok
}

// Generate returns the raw note text for prompt. Any failure is returned as a
// *GenerationError.
func (g *Generator) Generate(ctx context.Context, prompt string, tier ModelTier) (string, model.GenerationMetadata, error) {
	log := logging.NewLogger(ctx)

	modelName, ok := g.models[tier]
	if !ok {
		cause := fmt.Errorf("%w %q", ErrUnknownTier, tier)
		err := &GenerationError{Kind: model.ErrorKindInvalidRequest, Message: cause.Error(), Err: cause}
		log.Errorf("error: %v", err)
		return "", nil, err
	}

	opts := make([]model.GeneratorOption, 0, len(g.cfg.providerOpts)+1)
	opts = append(opts, g.cfg.providerOpts...)
	opts = append(opts, model.WithModel(modelName))

	var (
		text string
		meta model.GenerationMetadata
	)
	attempts, err := utils.WithRetry(ctx, func(ctx context.Context) error {
		var callErr error
		text, meta, callErr = g.generateOnce(ctx, prompt, opts)
		return callErr
	}, g.cfg.retry)
	if err != nil {
		genErr := newGenerationError(err, attempts)
		log.Errorf("error: %v", genErr)
		return "", meta, genErr
	}

	log.Infof("note_generated tier=%s model=%q attempts=%d chars=%d", tier, modelName, attempts, len(text))
	return text, meta, nil
}

func (g *Generator) generateOnce(
	ctx context.Context,
	prompt string,
	opts []model.GeneratorOption,
) (string, model.GenerationMetadata, error) {
	generator, err := g.newGenerator(prompt, opts...)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	generator.AddPromptContext(ctx, model.ContextMessageTypeSystem, g.cfg.systemPersona)

	text, meta, err := generator.Generate(ctx)
	if err != nil {
		return "", meta, utils.WrapIfNotNil(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", meta, utils.WrapIfNotNil(errEmptyResponse)
	}
	return text, meta, nil
}
