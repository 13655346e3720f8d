package model

import (
	"context"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
)

// PromptContextSet holds the static contexts and context providers attached to
// a generator. Provider generators embed it to satisfy the AddPromptContext
// half of ContentGenerator.
type PromptContextSet struct {
	mu        sync.RWMutex
	contexts  []*PromptContext
	providers []PromptContextProvider
}

func (s *PromptContextSet) AddPromptContext(ctx context.Context, messageType ContextMessageType, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts = append(s.contexts, &PromptContext{
		MessageType: messageType,
		Content:     content,
	})
	logging.NewLogger(ctx).Debugf("prompt_context_added type=%s total_contexts=%d", messageType, len(s.contexts))
}

func (s *PromptContextSet) AddPromptContextProvider(ctx context.Context, provider PromptContextProvider) {
	if provider == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, provider)
	logging.NewLogger(ctx).Debugf("prompt_context_provider_added total_providers=%d", len(s.providers))
}

// ResolvePromptContexts returns the static contexts followed by everything the
// providers generate. Nil and blank entries are dropped and content is trimmed.
func (s *PromptContextSet) ResolvePromptContexts(ctx context.Context) ([]*PromptContext, error) {
	s.mu.RLock()
	contexts := append([]*PromptContext(nil), s.contexts...)
	providers := append([]PromptContextProvider(nil), s.providers...)
	s.mu.RUnlock()

	for _, provider := range providers {
		provided, err := provider.GenerateContext(ctx)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, provided...)
	}

	resolved := make([]*PromptContext, 0, len(contexts))
	for _, item := range contexts {
		if item == nil {
			continue
		}
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		messageType := item.MessageType
		if messageType == "" {
			messageType = ContextMessageTypeHuman
		}
		resolved = append(resolved, &PromptContext{MessageType: messageType, Content: content})
	}
	return resolved, nil
}
