package notes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type PipelineSuite struct {
	suite.Suite
	service *fakeTextService
	codes   *catalog.Catalog
	terms   catalog.Terms
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.service = &fakeTextService{
		respond: func(ctx context.Context, call *generatorCall) (string, error) {
			return "Note body. Suggested code 90834.", nil
		},
	}
	s.codes = mustCatalog(&s.Suite,
		catalog.BillingCode{Code: "90834", Description: "Outpatient"},
		catalog.BillingCode{Code: "90837", Description: "Outpatient, 60 min"},
	)
	s.terms = catalog.Terms{"inner child", "chakra"}
}

func (s *PipelineSuite) TearDownTest() {
	goleak.VerifyNone(s.T())
}

func (s *PipelineSuite) newPipeline(opts ...PipelineOption) *Pipeline {
	generator, err := NewGenerator(s.service.factory, map[ModelTier]string{
		TierFast:     "fast-model",
		TierAccurate: "accurate-model",
	})
	s.Require().NoError(err)
	pipeline, err := NewPipeline(generator, s.codes, s.terms, opts...)
	s.Require().NoError(err)
	return pipeline
}

func (s *PipelineSuite) TestNewPipelineValidatesConfiguration() {
	generator, err := NewGenerator(s.service.factory, map[ModelTier]string{TierFast: "m"})
	s.Require().NoError(err)

	_, err = NewPipeline(nil, s.codes, s.terms)
	s.ErrorIs(err, ErrConfiguration)

	_, err = NewPipeline(generator, nil, s.terms)
	s.ErrorIs(err, ErrConfiguration)
}

func (s *PipelineSuite) TestBuildRequestsRejectsBadInput() {
	_, err := BuildRequests("  \n", []NoteFormat{FormatSOAP}, RoleTherapist, TierFast)
	s.ErrorIs(err, ErrEmptySessionText)

	_, err = BuildRequests("text", nil, RoleTherapist, TierFast)
	s.ErrorIs(err, ErrNoFormats)

	_, err = BuildRequests("text", []NoteFormat{FormatSOAP}, "", TierFast)
	s.ErrorIs(err, ErrEmptyRole)

	_, err = BuildRequests("text", []NoteFormat{"BIRP"}, RoleTherapist, TierFast)
	s.ErrorIs(err, ErrUnknownFormat)

	_, err = BuildRequests("text", []NoteFormat{FormatSOAP}, RoleTherapist, "premium")
	s.ErrorIs(err, ErrUnknownTier)
}

func (s *PipelineSuite) TestEmptySessionTextMakesNoServiceCall() {
	pipeline := s.newPipeline()

	results, err := pipeline.Generate(context.Background(), "   ", []NoteFormat{FormatSOAP}, RoleTherapist, TierFast)

	s.ErrorIs(err, ErrEmptySessionText)
	s.Nil(results)
	s.Zero(s.service.callCount())
}

func (s *PipelineSuite) TestBuildRequestsDedupesFormats() {
	requests, err := BuildRequests("text", []NoteFormat{FormatDAP, FormatSOAP, FormatDAP}, RoleTherapist, TierFast)

	s.Require().NoError(err)
	s.Require().Len(requests, 2)
	s.Equal(FormatDAP, requests[0].Format)
	s.Equal(FormatSOAP, requests[1].Format)
	s.NotEqual(requests[0].ID, requests[1].ID)
}

func (s *PipelineSuite) TestTwoFormatsProduceTwoPromptsDifferingOnlyInFormat() {
	pipeline := s.newPipeline()
	session := "Client reported improved sleep and fewer cravings."

	results, err := pipeline.Generate(context.Background(), session, []NoteFormat{FormatSOAP, FormatDAP}, RoleRecoveryCoach, TierFast)

	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal(FormatSOAP, results[0].Format)
	s.Equal(FormatDAP, results[1].Format)
	s.Require().Equal(2, s.service.callCount())

	prompts := map[NoteFormat]string{}
	for _, call := range s.service.calls {
		prompts[promptFormat(call.prompt)] = call.prompt
		s.True(strings.HasSuffix(call.prompt, "Session Text:\n"+session))
	}
	s.Require().Len(prompts, 2)

	soap := BuildPrompt(session, FormatSOAP, RoleRecoveryCoach, s.codes)
	dap := BuildPrompt(session, FormatDAP, RoleRecoveryCoach, s.codes)
	s.Equal(soap, prompts[FormatSOAP])
	s.Equal(dap, prompts[FormatDAP])

	normalizedSOAP := strings.NewReplacer("SOAP", "X", FormatSOAP.Instruction(), "I").Replace(soap)
	normalizedDAP := strings.NewReplacer("DAP", "X", FormatDAP.Instruction(), "I").Replace(dap)
	s.Equal(normalizedSOAP, normalizedDAP)
}

func (s *PipelineSuite) TestFailedFormatDoesNotAffectSibling() {
	s.service.respond = func(ctx context.Context, call *generatorCall) (string, error) {
		if promptFormat(call.prompt) == FormatDAP {
			return "", model.NewProviderError("fake", model.ErrorKindRateLimit, http.StatusTooManyRequests, errors.New("slow down"))
		}
		return "Subjective: discussed inner child work. Code 90837.", nil
	}
	pipeline := s.newPipeline()

	results, err := pipeline.Generate(context.Background(), "session", []NoteFormat{FormatSOAP, FormatDAP}, RoleTherapist, TierAccurate)

	s.Require().NoError(err)
	s.Require().Len(results, 2)

	soap := results[0]
	s.Equal(StatusCodeResolved, soap.Status)
	s.Equal([]string{"inner child"}, soap.FlaggedTerms)
	s.Require().NotNil(soap.SuggestedCode)
	s.Equal("90837", soap.SuggestedCode.Code)
	s.Equal("accurate-model", soap.Metadata[model.MetadataKeyModel])
	s.NotEmpty(soap.RequestID)

	dap := results[1]
	s.True(dap.Failed())
	s.Require().NotNil(dap.Err)
	s.Equal(model.ErrorKindRateLimit, dap.Err.Kind)
	s.Empty(dap.RawText)
	s.Nil(dap.SelectedCode)
}

func (s *PipelineSuite) TestPanicInOneFormatIsIsolated() {
	s.service.respond = func(ctx context.Context, call *generatorCall) (string, error) {
		if promptFormat(call.prompt) == FormatSOAP {
			panic("provider exploded")
		}
		return "Data: fine.", nil
	}
	pipeline := s.newPipeline()

	results, err := pipeline.Generate(context.Background(), "session", []NoteFormat{FormatSOAP, FormatDAP}, RoleTherapist, TierFast)

	s.Require().NoError(err)
	s.True(results[0].Failed())
	s.Equal(model.ErrorKindService, results[0].Err.Kind)
	s.Contains(results[0].Err.Message, "provider exploded")
	s.Equal(StatusCodeResolved, results[1].Status)
	s.Equal("90834", results[1].SelectedCode.Code)
}

func (s *PipelineSuite) TestRequestTimeoutFailsPendingCalls() {
	s.service.respond = func(ctx context.Context, call *generatorCall) (string, error) {
		if promptFormat(call.prompt) == FormatSOAP {
			return "Subjective: quick.", nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	}
	pipeline := s.newPipeline(WithRequestTimeout(20 * time.Millisecond))

	results, err := pipeline.Generate(context.Background(), "session", []NoteFormat{FormatSOAP, FormatDAP}, RoleTherapist, TierFast)

	s.Require().NoError(err)
	s.Equal(StatusCodeResolved, results[0].Status)
	s.True(results[1].Failed())
	s.Equal(model.ErrorKindTimeout, results[1].Err.Kind)
}

func (s *PipelineSuite) TestCallerCancellationIsReported() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.service.respond = func(ctx context.Context, call *generatorCall) (string, error) {
		return "", ctx.Err()
	}
	pipeline := s.newPipeline()

	results, err := pipeline.Generate(ctx, "session", []NoteFormat{FormatSOAP}, RoleTherapist, TierFast)

	s.Require().NoError(err)
	s.Equal(model.ErrorKindCanceled, results[0].Err.Kind)
}

func (s *PipelineSuite) TestNoCodeFoundFallsBackToFirstCatalogEntry() {
	s.service.respond = func(ctx context.Context, call *generatorCall) (string, error) {
		return "Assessment: progressing. Plan: continue.", nil
	}
	pipeline := s.newPipeline()

	results, err := pipeline.Generate(context.Background(), "session", []NoteFormat{FormatSOAP}, RoleTherapist, TierFast)

	s.Require().NoError(err)
	s.True(results[0].NoCodeFound())
	s.True(results[0].Clean())
	s.Equal(s.codes.First(), *results[0].SelectedCode)

	overridden, err := results[0].Override(pipeline.Catalog(), "90837")
	s.Require().NoError(err)
	s.Equal("90837", overridden.SelectedCode.Code)
	s.Equal(1, s.service.callCount())
}
