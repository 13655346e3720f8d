package notes

import (
	"testing"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
	"github.com/stretchr/testify/suite"
)

type PostProcessSuite struct {
	suite.Suite
}

func TestPostProcessSuite(t *testing.T) {
	suite.Run(t, new(PostProcessSuite))
}

func mustCatalog(s *suite.Suite, codes ...catalog.BillingCode) *catalog.Catalog {
	c, err := catalog.New(codes)
	s.Require().NoError(err)
	return c
}

func (s *PostProcessSuite) TestFlagsTermAndSuggestsCode() {
	codes := mustCatalog(&s.Suite, catalog.BillingCode{Code: "90834", Description: "Outpatient"})

	result := Process(
		"Patient discussed inner child work. CPT 90834 suggested.",
		catalog.Terms{"inner child", "chakra"},
		codes,
	)

	s.Equal([]string{"inner child"}, result.FlaggedTerms)
	s.Require().NotNil(result.SuggestedCode)
	s.Equal(catalog.BillingCode{Code: "90834", Description: "Outpatient"}, *result.SuggestedCode)
	s.Equal(*result.SuggestedCode, *result.SelectedCode)
	s.Equal(StatusCodeResolved, result.Status)
	s.False(result.NoCodeFound())
	s.False(result.Clean())
}

func (s *PostProcessSuite) TestNoPartialCodeMatch() {
	codes := mustCatalog(&s.Suite, catalog.BillingCode{Code: "9083", Description: "Fake"})

	result := Process("Billed as 90832 today.", nil, codes)

	s.Nil(result.SuggestedCode)
	s.True(result.NoCodeFound())
}

func (s *PostProcessSuite) TestNothingFoundDefaultsToFirstEntry() {
	codes := mustCatalog(&s.Suite,
		catalog.BillingCode{Code: "90791", Description: "Intake"},
		catalog.BillingCode{Code: "90834", Description: "Outpatient"},
	)

	result := Process("Client engaged in CBT exercises.", catalog.Terms{"inner child", "chakra"}, codes)

	s.Empty(result.FlaggedTerms)
	s.NotNil(result.FlaggedTerms)
	s.Nil(result.SuggestedCode)
	s.True(result.NoCodeFound())
	s.True(result.Clean())
	s.Require().NotNil(result.SelectedCode)
	s.Equal("90791", result.SelectedCode.Code)
}

func (s *PostProcessSuite) TestScreeningIsCaseInsensitiveAndBlunt() {
	terms := catalog.Terms{"chakra", "crystals", "energy work"}

	flagged := ScreenTerms("Discussed CHAKRAS and multichakrabalance; no crystal use.", terms)

	s.Equal([]string{"chakra"}, flagged)
}

func (s *PostProcessSuite) TestScreeningFollowsTermListOrder() {
	terms := catalog.Terms{"chakra", "inner child", "crystals"}

	flagged := ScreenTerms("Crystals first, then Inner Child, then chakra.", terms)

	s.Equal([]string{"chakra", "inner child", "crystals"}, flagged)
}

func (s *PostProcessSuite) TestScreeningResultIsSubsetOfTerms() {
	terms := catalog.Terms{"attachment style", "trauma bonding"}
	texts := []string{
		"",
		"trauma bonding and ATTACHMENT STYLE",
		"nothing relevant",
		"trauma-bonding",
	}
	for _, text := range texts {
		for _, term := range ScreenTerms(text, terms) {
			s.Contains(terms, term)
		}
	}
	s.Empty(ScreenTerms("trauma-bonding", terms))
}

func (s *PostProcessSuite) TestExtractCodeWholeTokenBoundaries() {
	codes := mustCatalog(&s.Suite,
		catalog.BillingCode{Code: "9083", Description: "Prefix"},
		catalog.BillingCode{Code: "H0004", Description: "Counseling"},
	)

	s.Nil(ExtractCode("19083 and 90831 and 9083a", codes))
	s.Nil(ExtractCode("XH0004", codes))

	code := ExtractCode("Codes: 90832, H0004.", codes)
	s.Require().NotNil(code)
	s.Equal("H0004", code.Code)

	code = ExtractCode("(9083)", codes)
	s.Require().NotNil(code)
	s.Equal("9083", code.Code)
}

func (s *PostProcessSuite) TestExtractCodeUsesCatalogOrderNotTextOrder() {
	codes := mustCatalog(&s.Suite,
		catalog.BillingCode{Code: "90837", Description: "60 min"},
		catalog.BillingCode{Code: "90834", Description: "45 min"},
	)

	code := ExtractCode("Considered 90834 but billed 90837.", codes)

	s.Require().NotNil(code)
	s.Equal("90837", code.Code)
}

func (s *PostProcessSuite) TestExtractCodeFindsLaterWholeOccurrence() {
	codes := mustCatalog(&s.Suite, catalog.BillingCode{Code: "90834", Description: "45 min"})

	code := ExtractCode("908345 then 90834", codes)

	s.Require().NotNil(code)
	s.Equal("90834", code.Code)
}

func (s *PostProcessSuite) TestProcessIsIdempotent() {
	codes, err := catalog.Default()
	s.Require().NoError(err)
	terms, err := catalog.DefaultTerms()
	s.Require().NoError(err)

	text := "Subjective: client mentioned crystals. Plan: continue weekly. Code 90837."
	first := Process(text, terms, codes)
	second := Process(text, terms, codes)

	s.Equal(first.FlaggedTerms, second.FlaggedTerms)
	s.Equal(first.SuggestedCode, second.SuggestedCode)
	s.Equal(first, second)
}

func (s *PostProcessSuite) TestProcessWithoutCatalogLeavesSelectionEmpty() {
	text := "Plan: continue weekly sessions. Code 90837."

	for name, codes := range map[string]*catalog.Catalog{
		"nil":   nil,
		"empty": {},
	} {
		s.Run(name, func() {
			var result NoteResult
			s.NotPanics(func() { result = Process(text, catalog.NewTerms([]string{"crystals"}), codes) })
			s.Nil(result.SuggestedCode)
			s.Nil(result.SelectedCode)
			s.Equal(StatusCodeResolved, result.Status)
		})
	}
}
