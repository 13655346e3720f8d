package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/stretchr/testify/suite"
)

type ContentSuite struct {
	suite.Suite
	server   *httptest.Server
	status   int
	body     string
	received anthropicMessageRequest
	headers  http.Header
}

func TestContentSuite(t *testing.T) {
	suite.Run(t, new(ContentSuite))
}

func (s *ContentSuite) SetupTest() {
	s.status = http.StatusOK
	s.body = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-latest",` +
		`"content":[{"type":"text","text":"Data: client engaged. Code 90837."}],"stop_reason":"end_turn",` +
		`"usage":{"input_tokens":50,"output_tokens":20}}`
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&s.received)
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
	}))
}

func (s *ContentSuite) TearDownTest() {
	s.server.Close()
}

func (s *ContentSuite) generate() (string, model.GenerationMetadata, error) {
	generator, err := NewStringContentGenerator("Session Text:\nhello",
		model.WithURL(s.server.URL+"/"),
		model.WithAuthToken("test-key"),
		model.WithMaxTokens(600),
	)
	s.Require().NoError(err)
	generator.AddPromptContext(context.Background(), model.ContextMessageTypeSystem, "persona")
	return generator.Generate(context.Background())
}

func (s *ContentSuite) TestGenerateSendsSystemAndReturnsText() {
	text, meta, err := s.generate()

	s.Require().NoError(err)
	s.Equal("Data: client engaged. Code 90837.", text)
	s.Equal("persona", s.received.System)
	s.Equal(600, s.received.MaxTokens)
	s.Require().Len(s.received.Messages, 1)
	s.Equal("user", s.received.Messages[0].Role)
	s.Equal("test-key", s.headers.Get("x-api-key"))
	s.Equal(anthropicVersion, s.headers.Get("anthropic-version"))
	s.Equal("70", meta[model.MetadataKeyTotalTokens])
	s.Equal("msg_1", meta[model.MetadataKeyResponseID])
}

func (s *ContentSuite) TestStatusCodesAreClassified() {
	cases := []struct {
		status int
		body   string
		kind   model.ErrorKind
	}{
		{http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, model.ErrorKindRateLimit},
		{http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, model.ErrorKindAuth},
		{http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`, model.ErrorKindInvalidRequest},
		{529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, model.ErrorKindService},
	}

	for _, tc := range cases {
		s.status = tc.status
		s.body = tc.body

		_, _, err := s.generate()

		s.Require().Error(err)
		s.Equal(tc.kind, model.ClassifyError(err), "status %d", tc.status)
		var apiErr *APIError
		s.Require().True(errors.As(err, &apiErr))
		s.Equal(tc.status, apiErr.StatusCode)
	}
}

func (s *ContentSuite) TestRefusalIsContentPolicy() {
	s.body = `{"id":"msg_2","type":"message","role":"assistant","content":[],"stop_reason":"refusal"}`

	_, meta, err := s.generate()

	s.Equal(model.ErrorKindContentPolicy, model.ClassifyError(err))
	s.Equal("refusal", meta[model.MetadataKeyResponseStatus])
}

func (s *ContentSuite) TestBuildMessages() {
	system, messages := buildMessages("final prompt", []*model.PromptContext{
		{MessageType: model.ContextMessageTypeSystem, Content: "system one"},
		{MessageType: model.ContextMessageTypeHuman, Content: "human context"},
		{MessageType: model.ContextMessageTypeAssistant, Content: "assistant context"},
	})

	s.Equal("system one", system)
	s.Require().Len(messages, 3)
	s.Equal("user", messages[0].Role)
	s.Equal("assistant", messages[1].Role)
	s.Equal("final prompt", messages[2].Content[0].Text)
}

func (s *ContentSuite) TestMessagesWithContextProviderError() {
	g := &textGenerator{prompt: "hi"}
	g.AddPromptContextProvider(context.Background(), &stubPromptContextProvider{err: errors.New("provider failed")})

	_, _, _, err := g.messagesWithContext(context.Background())
	s.Error(err)
	s.Contains(err.Error(), "provider failed")
}

type stubPromptContextProvider struct {
	err error
}

func (s *stubPromptContextProvider) GenerateContext(ctx context.Context) ([]*model.PromptContext, error) {
	return nil, s.err
}
