package notes

import (
	"context"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
)

type generatorCall struct {
	prompt   string
	cfg      model.GeneratorConfig
	contexts []*model.PromptContext
}

// fakeTextService stands in for a provider package. respond decides the
// outcome of each Generate call from the prompt it was built with.
type fakeTextService struct {
	mu        sync.Mutex
	calls     []*generatorCall
	respond   func(ctx context.Context, call *generatorCall) (string, error)
	createErr error
}

func (f *fakeTextService) factory(prompt string, opts ...model.GeneratorOption) (model.ContentGenerator[string], error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	call := &generatorCall{prompt: prompt, cfg: model.ResolveGeneratorOpts(opts...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return &fakeContentGenerator{service: f, call: call}, nil
}

func (f *fakeTextService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeContentGenerator struct {
	service *fakeTextService
	call    *generatorCall
}

func (g *fakeContentGenerator) Generate(ctx context.Context) (string, model.GenerationMetadata, error) {
	meta := model.GenerationMetadata{model.MetadataKeyProvider: "fake"}
	if g.call.cfg.Model != nil {
		meta[model.MetadataKeyModel] = *g.call.cfg.Model
	}
	text, err := g.service.respond(ctx, g.call)
	return text, meta, err
}

func (g *fakeContentGenerator) AddPromptContext(ctx context.Context, messageType model.ContextMessageType, content string) {
	g.call.contexts = append(g.call.contexts, &model.PromptContext{MessageType: messageType, Content: content})
}

func (g *fakeContentGenerator) AddPromptContextProvider(ctx context.Context, provider model.PromptContextProvider) {
}

func promptFormat(prompt string) NoteFormat {
	if strings.Contains(prompt, "generating a DAP note") {
		return FormatDAP
	}
	return FormatSOAP
}
